package integration

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/application"
	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/domain"
	"github.com/choreo-commerce/order-fulfillment/internal/coordinator/infrastructure/postgres"
	"github.com/choreo-commerce/order-fulfillment/pkg/outbox"
)

type stack struct {
	pool        *pgxpool.Pool
	service     *application.OrderService
	payments    *application.PaymentProcessor
	inventory   *application.InventoryProcessor
	outboxStore *postgres.OutboxStore
}

func setupStack(t *testing.T, ctx context.Context, pgURL string) *stack {
	t.Helper()
	log := slog.New(slog.DiscardHandler)

	pool, err := pgxpool.New(ctx, pgURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))

	orders := postgres.NewOrderRepository(log, pool)
	components := postgres.NewComponentRepository(log, pool)
	ledger := application.NewComponentLedger(log, components)
	fulfillment := application.NewFulfillment(log, orders)

	return &stack{
		pool:        pool,
		service:     application.NewOrderService(log, orders, ledger),
		payments:    application.NewPaymentProcessor(log, ledger, fulfillment),
		inventory:   application.NewInventoryProcessor(log, ledger, fulfillment),
		outboxStore: postgres.NewOutboxStore(log, pool),
	}
}

func TestSagaAgainstRealBackends(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION to run container-backed tests")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	s := setupStack(t, ctx, env.PGURL)

	t.Run("both components succeed and the order completes", func(t *testing.T) {
		order, err := s.service.PlaceOrder(ctx, application.PlaceOrderRequest{
			CustomerID: 1, ProductID: 100, Quantity: 3, UnitPrice: 2,
		}, "")
		require.NoError(t, err)

		require.NoError(t, s.payments.Process(ctx, domain.PaymentSucceeded{
			OrderID: order.ID, PaymentRef: uuid.New(), Amount: order.TotalAmount,
		}, ""))
		require.NoError(t, s.inventory.Process(ctx, domain.InventorySucceeded{
			OrderID: order.ID, ReservationRef: uuid.New(), Quantity: order.Quantity,
		}, ""))

		details, err := s.service.GetOrderDetails(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, details.Order.Status)
		assert.Equal(t, domain.OutcomeSuccess, details.Payment.Outcome)
		assert.Equal(t, domain.OutcomeSuccess, details.Inventory.Outcome)
	})

	t.Run("payment failure cancels the order", func(t *testing.T) {
		order, err := s.service.PlaceOrder(ctx, application.PlaceOrderRequest{
			CustomerID: 2, ProductID: 200, Quantity: 1, UnitPrice: 10,
		}, "")
		require.NoError(t, err)

		require.NoError(t, s.payments.Process(ctx, domain.PaymentFailed{
			OrderID: order.ID, Amount: order.TotalAmount, Reason: "insufficient balance",
		}, ""))

		details, err := s.service.GetOrderDetails(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, details.Order.Status)
		assert.Equal(t, domain.OutcomeFailure, details.Payment.Outcome)

		// Late inventory success must not resurrect the order.
		require.NoError(t, s.inventory.Process(ctx, domain.InventorySucceeded{
			OrderID: order.ID, ReservationRef: uuid.New(), Quantity: order.Quantity,
		}, ""))

		details, err = s.service.GetOrderDetails(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, details.Order.Status)
		assert.Equal(t, domain.OutcomeSuccess, details.Inventory.Outcome)
	})

	t.Run("duplicate payment event is a no-op", func(t *testing.T) {
		order, err := s.service.PlaceOrder(ctx, application.PlaceOrderRequest{
			CustomerID: 3, ProductID: 300, Quantity: 2, UnitPrice: 5,
		}, "")
		require.NoError(t, err)

		ev := domain.PaymentSucceeded{OrderID: order.ID, PaymentRef: uuid.New(), Amount: order.TotalAmount}
		require.NoError(t, s.payments.Process(ctx, ev, ""))
		require.NoError(t, s.payments.Process(ctx, ev, ""))

		details, err := s.service.GetOrderDetails(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, details.Order.Status)
	})

	t.Run("outbox relay publishes lifecycle events to kafka", func(t *testing.T) {
		log := slog.New(slog.DiscardHandler)
		topic := "order-events"

		writer := &kafka.Writer{
			Addr:                   kafka.TCP(env.KAddr...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		}
		defer writer.Close()

		relay := outbox.NewRelay(log, s.outboxStore, outbox.NewDispatcher(log, writer, topic), "it-relay")
		relayCtx, stopRelay := context.WithCancel(ctx)
		defer stopRelay()
		go func() { _ = relay.Run(relayCtx) }()

		order, err := s.service.PlaceOrder(ctx, application.PlaceOrderRequest{
			CustomerID: 4, ProductID: 400, Quantity: 1, UnitPrice: 7,
		}, "")
		require.NoError(t, err)

		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     env.KAddr,
			Topic:       topic,
			StartOffset: kafka.FirstOffset,
		})
		defer reader.Close()

		readCtx, cancelRead := context.WithTimeout(ctx, 60*time.Second)
		defer cancelRead()
		for {
			msg, err := reader.ReadMessage(readCtx)
			require.NoError(t, err)

			ev, err := domain.UnmarshalEvent(msg.Value)
			require.NoError(t, err)
			created, ok := ev.(domain.OrderCreated)
			if !ok || created.OrderID != order.ID {
				continue
			}
			assert.Equal(t, order.ID.String(), string(msg.Key))
			assert.Equal(t, order.TotalAmount, created.TotalAmount)
			break
		}
	})
}
