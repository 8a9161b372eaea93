package broker

// ExchangeConfig describes one of the fabric's three fixed exchanges.
type ExchangeConfig struct {
	Name    string
	Kind    string // amqp exchange type: "topic" or "direct"
	Durable bool
}

// PublisherConfig binds an exchange to the (optional) fixed routing key a
// publisher always uses.
type PublisherConfig struct {
	Exchange   ExchangeConfig
	RoutingKey string // empty means the caller supplies one per publish
}

// SubscriberConfig binds an exchange to the queue a subscriber declares and
// the routing keys it binds with.
type SubscriberConfig struct {
	Exchange    ExchangeConfig
	QueueName   string // empty means an auto-generated exclusive queue
	RoutingKeys []string
	Durable     bool
}

var (
	jobExchange = ExchangeConfig{
		Name:    "job_exchange",
		Kind:    "topic",
		Durable: true,
	}
	resultExchange = ExchangeConfig{
		Name:    "result_exchange",
		Kind:    "direct",
		Durable: true,
	}
	statusExchange = ExchangeConfig{
		Name:    "status_exchange",
		Kind:    "direct",
		Durable: true,
	}
)

// RoutingKeyWorkerResult and RoutingKeyWorkerStatus are the fixed routing
// keys every worker publishes results and status under.
const (
	RoutingKeyWorkerResult = "worker_result"
	RoutingKeyWorkerStatus = "worker_status"
)

// JobPublisherConfig is used by the scheduler to publish WorkerJob envelopes;
// the routing key is supplied per call (the Job's own routing_key).
func JobPublisherConfig() PublisherConfig {
	return PublisherConfig{Exchange: jobExchange}
}

// ResultPublisherConfig is used by workers to publish WorkerResult envelopes.
func ResultPublisherConfig() PublisherConfig {
	return PublisherConfig{Exchange: resultExchange, RoutingKey: RoutingKeyWorkerResult}
}

// StatusPublisherConfig is used by workers to publish WorkerStatus envelopes.
func StatusPublisherConfig() PublisherConfig {
	return PublisherConfig{Exchange: statusExchange, RoutingKey: RoutingKeyWorkerStatus}
}

// JobSubscriberConfig is used by a worker to declare its own job queue,
// named after the worker and bound to each of its topics.
func JobSubscriberConfig(workerName string, topics []string) SubscriberConfig {
	return SubscriberConfig{
		Exchange:    jobExchange,
		QueueName:   workerName,
		RoutingKeys: topics,
		Durable:     true,
	}
}

// ResultSubscriberConfig is used by the scheduler's result consumer.
func ResultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		Exchange:    resultExchange,
		QueueName:   "result_queue",
		RoutingKeys: []string{RoutingKeyWorkerResult},
		Durable:     true,
	}
}

// StatusSubscriberConfig is used by the scheduler's worker-registry consumer.
func StatusSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		Exchange:    statusExchange,
		QueueName:   "status_queue",
		RoutingKeys: []string{RoutingKeyWorkerStatus},
		Durable:     true,
	}
}
