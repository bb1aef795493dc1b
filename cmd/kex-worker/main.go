// Command kex-worker is a minimal demonstration wiring for package kex: it
// starts a worker against a seed broker list, prints the broker and topic
// counts of the initial metadata snapshot, and optionally attaches a stream.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/kexgo/kex/pkg/kex"
)

func main() {
	var (
		seeds      = flag.String("seeds", "127.0.0.1:9092", "comma-separated list of host:port seed brokers")
		group      = flag.String("group", kex.NoGroup, "consumer group, or \"no group\"")
		topic      = flag.String("topic", "", "topic to stream from, if set")
		partition  = flag.Int("partition", 0, "partition to stream from")
		verbose    = flag.Bool("v", false, "enable debug logging")
		syncWindow = flag.Duration("sync-timeout", kex.DefaultSyncTimeout, "per-request synchronous timeout")
	)
	flag.Parse()

	addrs, err := parseSeeds(*seeds)
	if err != nil {
		log.Fatalf("kex-worker: %v", err)
	}

	level := kex.LogLevelInfo
	if *verbose {
		level = kex.LogLevelDebug
	}

	client, err := kex.NewClient(
		kex.SeedBrokers(addrs...),
		kex.ConsumerGroup(*group),
		kex.SyncTimeout(*syncWindow),
		kex.WithLogger(kex.NewBasicLogger(level)),
	)
	if err != nil {
		log.Fatalf("kex-worker: unable to start worker: %v", err)
	}
	defer client.Close()

	snap, err := client.Metadata("")
	if err != nil {
		log.Fatalf("kex-worker: initial metadata failed: %v", err)
	}
	fmt.Printf("cluster has %d broker(s), %d topic(s)\n", len(snap.Brokers), len(snap.Topics))

	if *topic == "" {
		return
	}

	stream, err := client.CreateStream(kex.CreateStreamRequest{
		Topic:        *topic,
		Partition:    int32(*partition),
		Offset:       0,
		AutoCommit:   client.HasGroup(),
		PollInterval: 1000,
	})
	if err != nil {
		log.Fatalf("kex-worker: create_stream failed: %v", err)
	}

	for record := range stream.Records() {
		fmt.Printf("%s[%d]@%d: %s\n", record.Topic, record.Partition, record.Offset, record.Message.Value)
	}
}

func parseSeeds(raw string) ([]kex.BrokerAddr, error) {
	var out []kex.BrokerAddr
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		host, portStr, ok := strings.Cut(s, ":")
		if !ok {
			return nil, fmt.Errorf("invalid seed %q, expected host:port", s)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid port in seed %q: %w", s, err)
		}
		out = append(out, kex.BrokerAddr{Host: host, Port: int32(port)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no seed brokers given")
	}
	return out, nil
}
