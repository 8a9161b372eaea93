package domain

import (
	"reflect"
	"testing"
)

func TestNormalizeTopics(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", []string{""}, []string{"all"}},
		{"nil", nil, []string{"all"}},
		{"dedup", []string{"x", "x", "y"}, []string{"x", "y", "all"}},
		{"already has all", []string{"all", "x"}, []string{"all", "x"}},
		{"all in the middle", []string{"x", "all", "y"}, []string{"x", "all", "y"}},
		{"blank entries dropped", []string{"x", "", "y"}, []string{"x", "y", "all"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeTopics(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("NormalizeTopics(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
