// Command smoke checks a running geoconvertd deployment end to end: the Redis
// result cache, the HTTP surface and the operation event topic.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/geoconvert/internal/cache/redisstore"
	"github.com/mohammed-shakir/geoconvert/internal/opevents"
)

const sampleFeature = `{"type":"Feature","properties":{"name":"smoke"},"geometry":{"type":"Polygon","coordinates":[[[18.0,59.3],[18.1,59.3],[18.1,59.4],[18.0,59.3]]]}}`

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

func testRedis(ctx context.Context, addr string) error {
	fmt.Println("Redis test")
	rc, err := redisstore.New(ctx, addr)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if err := rc.Set(ctx, "gc:v1:smoke", []byte("ok"), 30*time.Second); err != nil {
		return err
	}
	val, ok, err := rc.Get(ctx, "gc:v1:smoke")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("redis: smoke key missing right after SET")
	}
	fmt.Println("redis GET gc:v1:smoke:", string(val))
	return nil
}

func testService(ctx context.Context, baseURL string) error {
	fmt.Println("geoconvertd test")
	base := strings.TrimRight(baseURL, "/")
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/convert?value=1&from=miles", nil)
	if err != nil {
		return fmt.Errorf("build convert request: %w", err)
	}
	if err := call(client, req); err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	for range 2 {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, base+"/explode", bytes.NewBufferString(sampleFeature))
		if err != nil {
			return fmt.Errorf("build explode request: %w", err)
		}
		req.Header.Set("Content-Type", "application/geo+json")
		if err := call(client, req); err != nil {
			return fmt.Errorf("explode: %w", err)
		}
	}
	return nil
}

func call(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Only read a small part of body (because it can be large)
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	fmt.Printf("%s %s [cache=%s]: %s\n", req.Method, req.URL.Path, resp.Header.Get("X-Cache"), string(body))
	return nil
}

func testEvents(brokers []string, topic string, wait time.Duration) error {
	fmt.Println("Kafka test")

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	consumer, err := sarama.NewConsumer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("consumer create: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	pc, err := consumer.ConsumePartition(topic, 0, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("consume partition: %w", err)
	}
	defer func() { _ = pc.Close() }()

	deadline := time.After(wait)
	for {
		select {
		case m := <-pc.Messages():
			var ev opevents.Event
			if err := json.Unmarshal(m.Value, &ev); err != nil {
				fmt.Println("skipping undecodable record:", err)
				continue
			}
			if ev.Op == "explode" {
				fmt.Printf("consumed: op=%s in=%d out=%d cached=%v\n", ev.Op, ev.FeaturesIn, ev.FeaturesOut, ev.Cached)
				return nil
			}
		case <-deadline:
			return fmt.Errorf("no explode event on %s within %s", topic, wait)
		}
	}
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	redisAddr := getenv("REDIS_ADDR", "localhost:6379")
	service := getenv("GEOCONVERT_URL", "http://localhost:8090")
	brokers := strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ",")
	topic := getenv("KAFKA_TOPIC", "geoconvert-ops")

	if err := testRedis(ctx, redisAddr); err != nil {
		fmt.Println("Redis error:", err)
		os.Exit(1)
	}
	if err := testService(ctx, service); err != nil {
		fmt.Println("geoconvertd error:", err)
		os.Exit(1)
	}
	if err := testEvents(brokers, topic, 5*time.Second); err != nil {
		fmt.Println("Kafka error:", err)
		os.Exit(1)
	}
	fmt.Println("All tests completed")
}
