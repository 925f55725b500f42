package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/almacen/inventory_backend/config"
	"github.com/almacen/inventory_backend/models"
	"github.com/almacen/inventory_backend/utils"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}
}

// openMySQL starts a MySQL container, connects through the production path and migrates.
func openMySQL(ctx context.Context, t *testing.T) *gorm.DB {
	t.Helper()
	containerName, port := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(containerName) })

	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", port)
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_NAME", "almacen_test")
	t.Setenv("DB_CONNECT_MAX_ATTEMPTS", "20")

	db, err := config.ConnectDatabaseWithRetry(ctx)
	require.NoError(t, err)
	_, err = models.MigrateTable(ctx, db, nil)
	require.NoError(t, err)
	return db
}

func openRedis(ctx context.Context, t *testing.T) (*redis.Client, *redislock.Client) {
	t.Helper()
	containerName, port := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(containerName) })

	t.Setenv("REDIS_ADDRESS", "127.0.0.1:"+port)
	t.Setenv("REDIS_PASSWORD", "")
	rdb, locker, err := config.ConnectRedisWithRetry(ctx, 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, locker
}

func createIntegrationItem(ctx context.Context, t *testing.T, store *models.Store, code string, qty string) *models.Product {
	t.Helper()
	p, err := models.NewItem{
		Name:     "Cuaderno A4",
		Code:     code,
		Price:    decimal.RequireFromString("5"),
		Quantity: decimal.RequireFromString(qty),
	}.ToProduct()
	require.NoError(t, err)
	require.NoError(t, store.CreateProduct(ctx, p, "it"))
	return p
}

// Integration (MySQL + Redis): parallel buyers against one product must never take the
// stock below zero, and every accepted sale must leave exactly one history row. The Redis
// sale lock is in play and must be released after every sale.
func TestRecordSale_MySQL_ConcurrentBuyers(t *testing.T) {
	skipUnlessIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	db := openMySQL(ctx, t)
	rdb, locker := openRedis(ctx, t)

	store := models.NewStore(db, models.WithEvents(true), models.WithCache(rdb), models.WithLocker(locker))
	p := createIntegrationItem(ctx, t, store, "INT-1", "100")

	const buyers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, rejected := 0, 0
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.RecordSale(ctx, models.NewSale{
				ProductId: p.ID,
				Quantity:  decimal.RequireFromString("15"),
				Seller:    fmt.Sprintf("caja-%d", i),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case utils.KindOf(err) == utils.KindInsufficientStock:
				rejected++
			default:
				t.Errorf("buyer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 6, accepted)
	assert.Equal(t, buyers-6, rejected)

	stored, err := store.GetProduct(ctx, p.ID, models.ProductTypeItem)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10").Equal(stored.QuantityRemaining), "remaining %s", stored.QuantityRemaining)

	var sales, history, events int64
	require.NoError(t, db.Model(&models.Sale{}).Where("producto_id = ?", p.ID).Count(&sales).Error)
	require.NoError(t, db.Model(&models.HistoryEntry{}).Where("producto_id = ? AND accion = ?", p.ID, models.HistoryActionSale).Count(&history).Error)
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("aggregate_id = ?", p.ID).Count(&events).Error)
	assert.Equal(t, int64(6), sales)
	assert.Equal(t, int64(6), history)
	assert.Equal(t, int64(6), events)

	held, err := rdb.Exists(ctx, fmt.Sprintf("saleLock:%d", p.ID)).Result()
	require.NoError(t, err)
	assert.Zero(t, held, "sale lock must be released")

	violations, err := store.AuditStock(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

// Integration (MySQL + Redis): product lists are served from Redis, a sale drops the
// cached lists, and a list read before the sale cannot be written back afterwards.
func TestListProducts_MySQL_RedisCache(t *testing.T) {
	skipUnlessIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	db := openMySQL(ctx, t)
	rdb, locker := openRedis(ctx, t)
	store := models.NewStore(db, models.WithCache(rdb), models.WithLocker(locker))
	p := createIntegrationItem(ctx, t, store, "INT-2", "10")

	items, err := store.ListProducts(ctx, models.ProductFilter{Type: models.ProductTypeItem})
	require.NoError(t, err)
	require.Len(t, items, 1)
	_, err = store.ListProducts(ctx, models.ProductFilter{})
	require.NoError(t, err)

	cached, err := rdb.Exists(ctx, "Productos:articulo", "Productos:todos").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), cached)

	// A change behind the store's back stays invisible while the list is cached.
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", p.ID).Update("nombre", "Cuaderno A5").Error)
	items, err = store.ListProducts(ctx, models.ProductFilter{Type: models.ProductTypeItem})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Cuaderno A4", items[0].Name, "served from cache")

	staleVersion, err := config.GetRedisVersion(ctx, rdb, "Productos:version")
	require.NoError(t, err)

	_, err = store.RecordSale(ctx, models.NewSale{ProductId: p.ID, Quantity: decimal.RequireFromString("4"), Seller: "caja"})
	require.NoError(t, err)

	cached, err = rdb.Exists(ctx, "Productos:articulo", "Productos:todos").Result()
	require.NoError(t, err)
	assert.Zero(t, cached, "a sale drops both cached lists")

	// A reader that loaded rows before the sale must not repopulate the cache.
	written, err := config.SetRedisObjectIfVersion(ctx, rdb, "Productos:articulo", "Productos:version", staleVersion, items, time.Hour)
	require.NoError(t, err)
	assert.False(t, written)

	items, err = store.ListProducts(ctx, models.ProductFilter{Type: models.ProductTypeItem})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Cuaderno A5", items[0].Name)
	assert.True(t, decimal.RequireFromString("6").Equal(items[0].QuantityRemaining), "remaining %s", items[0].QuantityRemaining)

	cached, err = rdb.Exists(ctx, "Productos:articulo").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached, "fresh list is cached again")
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("almacen-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		_ = dockerRmForce(name)
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	_ = dockerRmForce(name)
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("almacen-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=almacen_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		_ = dockerRmForce(name)
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	_ = dockerRmForce(name)
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// "127.0.0.1:49154\n"
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}
