package kafka

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTopicSpecDefaults(t *testing.T) {
	s := TopicSpec{Name: "prediction-recorded"}.withDefaults()
	require.Equal(t, 1, s.NumPartitions)
	require.Equal(t, 1, s.ReplicationFactor)
	require.Equal(t, 5*time.Second, s.MaxWait)

	tc := s.config()
	require.Equal(t, "prediction-recorded", tc.Topic)
	require.Empty(t, tc.ConfigEntries)
}

func TestTopicSpecRetention(t *testing.T) {
	tc := TopicSpec{Name: "p", NumPartitions: 3, Retention: 7 * 24 * time.Hour}.withDefaults().config()
	require.Equal(t, 3, tc.NumPartitions)
	require.Len(t, tc.ConfigEntries, 1)
	require.Equal(t, "retention.ms", tc.ConfigEntries[0].ConfigName)
	require.Equal(t, "604800000", tc.ConfigEntries[0].ConfigValue)
}

func TestEnsureTopicNoBrokers(t *testing.T) {
	err := EnsureTopic(context.Background(), nil, TopicSpec{Name: "p"}, nil)
	require.ErrorIs(t, err, ErrNoBrokers)
}

func TestEnsureTopicUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err = EnsureTopic(ctx, []string{addr, addr}, TopicSpec{Name: "p"}, nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoBrokers)
}
