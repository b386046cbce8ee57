package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

func main() {
	var resetState bool
	pflag.BoolVar(&resetState, "reset-state", false, "delete cached device state (device:*:state and devices:geo)")
	pflag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using system environment variables")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisGetEnv("REDIS_ADDR", "localhost:6379"),
		Password: redisGetEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer client.Close()

	ctx := context.Background()

	fmt.Println("Connecting to Redis...")
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Redis is running:\n  docker-compose up -d redis", err)
	}
	fmt.Println("✓ Connected")

	step1_api_keys(ctx, client)
	if resetState {
		step2_reset_state(ctx, client)
	}
	step3_verify(ctx, client)

	fmt.Println("\n✅ Redis seeded successfully")
	fmt.Println("   Run next: go run ./cmd/detector")
}

func step1_api_keys(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 1: Seeding report API keys ─────────────")

	// Key pattern: vehicle:auth:{api_key} → account
	// TTL = 0 means permanent
	apiKeys := map[string]string{
		"vehicle:auth:dispatch_console_key": "dispatch_console",
		"vehicle:auth:reports_batch_key":    "reports_batch",
		"vehicle:auth:test_key":             "test_account",
	}

	for key, owner := range apiKeys {
		if err := client.Set(ctx, key, owner, 0).Err(); err != nil {
			log.Fatalf("Failed to set key %s: %v", key, err)
		}
		fmt.Printf("  ✓ %-45s → %s\n", key, owner)
	}
}

// step2_reset_state drops the mirrored device state so the detector warms
// every device from the database again.
func step2_reset_state(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 2: Resetting device state ──────────────")

	var deleted int64
	iter := client.Scan(ctx, 0, "device:*:state", 500).Iterator()
	for iter.Next(ctx) {
		n, err := client.Del(ctx, iter.Val()).Result()
		if err != nil {
			log.Fatalf("Failed to delete %s: %v", iter.Val(), err)
		}
		deleted += n
	}
	if err := iter.Err(); err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	if err := client.Del(ctx, "devices:geo").Err(); err != nil {
		log.Fatalf("Failed to delete devices:geo: %v", err)
	}
	fmt.Printf("  ✓ %d device state keys deleted\n", deleted)
}

func step3_verify(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 3: Verification ────────────────────────")

	keys, err := client.Keys(ctx, "vehicle:auth:*").Result()
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	fmt.Printf("  ✓ %d API keys found in Redis\n", len(keys))

	val, err := client.Get(ctx, "vehicle:auth:test_key").Result()
	if err != nil {
		log.Fatalf("Spot check failed: %v", err)
	}
	fmt.Printf("  ✓ spot check: vehicle:auth:test_key → %s\n", val)
}

func redisGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
