package warehouse

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"storefront/internal/purchase"
)

// DefaultStockKeyPrefix prefixes per-sku stock keys in Redis.
const DefaultStockKeyPrefix = "stock:"

// RedisClient serves inventory checks from per-sku counters in Redis.
type RedisClient struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisClient constructs a Redis-backed inventory client. An empty
// keyPrefix falls back to DefaultStockKeyPrefix.
func NewRedisClient(client redis.Cmdable, keyPrefix string) *RedisClient {
	if keyPrefix == "" {
		keyPrefix = DefaultStockKeyPrefix
	}
	return &RedisClient{client: client, keyPrefix: keyPrefix}
}

// SetStock writes the available quantity for a sku. Used by seeding and
// by tests; the saga itself only reads.
func (c *RedisClient) SetStock(ctx context.Context, sku string, quantity int) error {
	return c.client.Set(ctx, c.keyPrefix+sku, quantity, 0).Err()
}

// CheckInventory fetches every ordered sku in one MGET and compares the
// counters against the requested quantities. A missing key counts as out
// of stock; a failed round trip stays transient so the caller may retry.
func (c *RedisClient) CheckInventory(ctx context.Context, products []purchase.Product) error {
	if len(products) == 0 {
		return nil
	}

	keys := make([]string, len(products))
	for i, product := range products {
		keys[i] = c.keyPrefix + product.Sku
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("fetch stock counters: %w", err)
	}

	var short []string
	for i, value := range values {
		available, err := parseStock(value)
		if err != nil {
			return fmt.Errorf("stock counter %s: %w", keys[i], err)
		}
		if available < products[i].Quantity {
			short = append(short, products[i].Sku)
		}
	}
	if len(short) > 0 {
		return outOfStockError(short)
	}
	return nil
}

func parseStock(value any) (int, error) {
	if value == nil {
		return 0, nil
	}
	raw, ok := value.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected type %T", value)
	}
	return strconv.Atoi(raw)
}
