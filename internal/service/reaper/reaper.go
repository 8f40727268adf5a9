package reaper

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultSweepInterval = 2 * time.Minute
	defaultTTL           = 5 * time.Minute
	defaultBatchSize     = 100
)

var (
	reaperRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_guest_cart_reaper_runs_total",
		Help: "Total number of guest cart reaper runs grouped by result.",
	}, []string{"result"})
	reaperDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_guest_cart_reaper_deleted_total",
		Help: "Total number of deleted abandoned guest carts.",
	})
	reaperLastDeleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_guest_cart_reaper_last_deleted",
		Help: "Number of deleted guest carts during the last sweep.",
	})
)

// Options задает параметры reaper гостевых корзин.
type Options struct {
	Logger    *log.Entry
	Interval  time.Duration
	TTL       time.Duration
	BatchSize int
}

// Option настраивает Reaper.
type Option func(*Options)

// WithLogger задает logger для reaper.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задает интервал между sweep-циклами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithTTL задает окно неактивности, после которого гостевая корзина
// считается брошенной.
func WithTTL(ttl time.Duration) Option {
	return func(opts *Options) {
		opts.TTL = ttl
	}
}

// WithBatchSize задает размер batch для одного удаления.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) {
		opts.BatchSize = batchSize
	}
}

// Reaper периодически удаляет брошенные гостевые корзины.
// Корзины без отметки активности тоже удаляются: это legacy-строки,
// оставшиеся от старых версий схемы.
type Reaper struct {
	carts     domain.CartRepository
	logger    *log.Entry
	interval  time.Duration
	ttl       time.Duration
	batchSize int
}

// New создает reaper гостевых корзин.
func New(carts domain.CartRepository, options ...Option) *Reaper {
	opts := Options{
		Interval:  defaultSweepInterval,
		TTL:       defaultTTL,
		BatchSize: defaultBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "guest-cart-reaper")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	return &Reaper{
		carts:     carts,
		logger:    logger,
		interval:  opts.Interval,
		ttl:       opts.TTL,
		batchSize: opts.BatchSize,
	}
}

// Run выполняет немедленный sweep, затем повторяет его по таймеру
// до отмены ctx.
func (r *Reaper) Run(ctx context.Context) {
	if r.carts == nil {
		r.logger.Warn("guest cart reaper is disabled: cart repository is nil")
		return
	}

	r.sweep(ctx, time.Now().UTC().Add(-r.ttl))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx, time.Now().UTC().Add(-r.ttl))
		}
	}
}

func (r *Reaper) sweep(ctx context.Context, before time.Time) {
	deleted, err := r.SweepOnce(ctx, before)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// Хранилище может быть недоступно на старте процесса;
		// sweep просто пропускается до следующего тика.
		reaperRunsTotal.WithLabelValues("error").Inc()
		r.logger.WithError(err).Warn("guest cart sweep failed")
		return
	}

	reaperRunsTotal.WithLabelValues("ok").Inc()
	reaperLastDeleted.Set(float64(deleted))
	if deleted > 0 {
		r.logger.WithField("deleted", deleted).Info("guest cart sweep completed")
	}
}

// SweepOnce удаляет все гостевые корзины с last_activity <= before
// (или вовсе без нее) порциями batchSize.
func (r *Reaper) SweepOnce(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC().Add(-r.ttl)
	}

	totalDeleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		deleted, err := r.carts.DeleteStaleGuestCarts(before, r.batchSize)
		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		reaperDeletedTotal.Add(float64(deleted))

		if deleted < r.batchSize {
			return totalDeleted, nil
		}
	}
}
