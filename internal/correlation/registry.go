package correlation

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ovs/internal/domain"
	"github.com/vladislavdragonenkov/ovs/internal/metrics"
)

const (
	defaultGrace         = 30 * time.Second
	defaultSweepInterval = 10 * time.Second
)

// State — состояние correlation записи. Переходы строго монотонные:
// Pending → Resolved либо Pending → Expired, обратных переходов нет.
type State string

const (
	StatePending  State = "pending"
	StateResolved State = "resolved"
	StateExpired  State = "expired"
)

// entry — одна correlation запись. Синхронизация по-записная: mu защищает
// все мутации, done закрывается ровно один раз при выходе из Pending.
type entry struct {
	mu        sync.Mutex
	expected  int
	deadline  time.Time
	responses map[domain.ParticipantKind]domain.ValidationResponse
	arrival   []domain.ParticipantKind
	state     State
	verdict   domain.Verdict
	done      chan struct{}
}

// snapshotLocked собирает результат; вызывается только под entry.mu.
func (e *entry) snapshotLocked() domain.ValidationResult {
	responses := make([]domain.ValidationResponse, 0, len(e.arrival))
	for _, kind := range e.arrival {
		responses = append(responses, e.responses[kind])
	}
	return domain.ValidationResult{
		Verdict:   e.verdict,
		Responses: responses,
		Complete:  len(e.responses) >= e.expected,
	}
}

// Options задаёт параметры реестра.
type Options struct {
	Logger        *log.Entry
	Metrics       *metrics.ValidationMetrics
	Grace         time.Duration
	SweepInterval time.Duration
}

// Option настраивает Registry.
type Option func(*Options)

// WithLogger задаёт logger реестра.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики реестра.
func WithMetrics(m *metrics.ValidationMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithGrace задаёт окно после дедлайна, в течение которого запись ещё жива.
func WithGrace(grace time.Duration) Option {
	return func(opts *Options) {
		opts.Grace = grace
	}
}

// WithSweepInterval задаёт интервал между циклами фоновой очистки.
func WithSweepInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.SweepInterval = interval
	}
}

// Registry — процессный реестр correlation записей: единственное разделяемое
// мутабельное состояние протокола. Record и Await безопасны для конкурентного
// вызова по одному и тому же id; пробуждение ожидающего событийное, без опроса.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	grace         time.Duration
	sweepInterval time.Duration
	logger        *log.Entry
	metrics       *metrics.ValidationMetrics
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(options ...Option) *Registry {
	opts := Options{
		Grace:         defaultGrace,
		SweepInterval: defaultSweepInterval,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "correlation-registry")
	}
	if opts.Grace <= 0 {
		opts.Grace = defaultGrace
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}

	return &Registry{
		entries:       make(map[string]*entry),
		grace:         opts.Grace,
		sweepInterval: opts.SweepInterval,
		logger:        logger,
		metrics:       opts.Metrics,
	}
}

// Register создаёт Pending запись под correlationID. Повторная регистрация
// того же id — жёсткая ошибка: она означает сбой генерации токенов.
func (r *Registry) Register(correlationID string, expected int, deadline time.Time) error {
	if correlationID == "" {
		return domain.ErrCorrelationIDRequired
	}
	if expected <= 0 {
		return fmt.Errorf("expected count must be greater than zero, got %d", expected)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[correlationID]; exists {
		return domain.ErrAlreadyRegistered
	}

	r.entries[correlationID] = &entry{
		expected:  expected,
		deadline:  deadline,
		responses: make(map[domain.ParticipantKind]domain.ValidationResponse, expected),
		state:     StatePending,
		done:      make(chan struct{}),
	}

	if r.metrics != nil {
		r.metrics.AddInflight(1)
	}
	return nil
}

// Record добавляет ответ участника к соответствующей записи.
// Ответ для неизвестного или уже завершённого id отбрасывается без ошибки:
// брокер не гарантирует порядок доставки относительно жизненного цикла записи,
// такие события наблюдаемы только через метрики.
func (r *Registry) Record(resp domain.ValidationResponse) {
	if err := resp.Validate(); err != nil {
		r.logger.WithError(err).Debug("dropping invalid validation response")
		return
	}

	r.mu.RLock()
	e := r.entries[resp.CorrelationID]
	r.mu.RUnlock()

	if e == nil {
		if r.metrics != nil {
			r.metrics.RecordUnknownDropped()
		}
		r.logger.WithField("correlation_id", resp.CorrelationID).Debug("response for unknown correlation dropped")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePending {
		if r.metrics != nil {
			r.metrics.RecordLateDropped()
		}
		return
	}

	if prev, seen := e.responses[resp.Participant]; seen {
		if r.metrics != nil {
			r.metrics.RecordDuplicate()
		}
		// Повторная доставка коллапсирует в last-write, но invalid доминирует:
		// однажды увиденный отказ участника не стирается поздним valid.
		if prev.Outcome == domain.OutcomeInvalid && resp.Outcome == domain.OutcomeValid {
			return
		}
		e.responses[resp.Participant] = resp
	} else {
		e.responses[resp.Participant] = resp
		e.arrival = append(e.arrival, resp.Participant)
	}

	if r.metrics != nil {
		r.metrics.RecordResponse(string(resp.Participant), string(resp.Outcome))
	}

	if resp.Outcome == domain.OutcomeInvalid {
		// Short-circuit: один invalid решает исход, второго ответа не ждём.
		r.resolveLocked(e, domain.VerdictRejected)
		return
	}
	if len(e.responses) >= e.expected {
		r.resolveLocked(e, domain.VerdictApproved)
	}
}

// resolveLocked переводит запись Pending → Resolved; вызывается под entry.mu.
func (r *Registry) resolveLocked(e *entry, verdict domain.Verdict) {
	e.state = StateResolved
	e.verdict = verdict
	close(e.done)
	if r.metrics != nil {
		r.metrics.RecordResolved(string(verdict))
		r.metrics.AddInflight(-1)
	}
}

// Await блокирует вызывающего до резолюции записи или её дедлайна.
// По истечении дедлайна запись переходит Pending → Expired с вердиктом
// TimedOut. Отмена ctx возвращает ошибку контекста; запись остаётся жить
// до фоновой очистки и не требует явной дерегистрации.
func (r *Registry) Await(ctx context.Context, correlationID string) (domain.ValidationResult, error) {
	r.mu.RLock()
	e := r.entries[correlationID]
	r.mu.RUnlock()

	if e == nil {
		return domain.ValidationResult{}, domain.ErrUnknownCorrelation
	}

	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordAwaitDuration(time.Since(start))
		}
	}()

	e.mu.Lock()
	if e.state != StatePending {
		result := e.snapshotLocked()
		e.mu.Unlock()
		return result, nil
	}
	done := e.done
	deadline := e.deadline
	e.mu.Unlock()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
		return domain.ValidationResult{}, ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Дедлайн и резолюция могут гоняться; состояние перепроверяется под локом.
	if e.state == StatePending {
		r.expireLocked(e)
	}
	return e.snapshotLocked(), nil
}

// expireLocked переводит запись Pending → Expired; вызывается под entry.mu.
func (r *Registry) expireLocked(e *entry) {
	e.state = StateExpired
	e.verdict = domain.VerdictTimedOut
	close(e.done)
	if r.metrics != nil {
		r.metrics.RecordResolved(string(domain.VerdictTimedOut))
		r.metrics.AddInflight(-1)
	}
}

// InFlight возвращает число записей в реестре.
func (r *Registry) InFlight() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Run запускает периодическую очистку записей до отмены ctx.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := r.Sweep(time.Now())
			if removed > 0 {
				r.logger.WithField("removed", removed).Debug("correlation sweep completed")
			}
		}
	}
}

// Sweep удаляет записи, чей дедлайн плюс grace окно прошли, и возвращает
// число удалённых. Ожидающие записи при этом экспирируются, поэтому память
// ограничена числом действительно живых correlation id даже если вызывающий
// бросил свой await.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.entries {
		e.mu.Lock()
		expired := now.After(e.deadline.Add(r.grace))
		if expired && e.state == StatePending {
			r.expireLocked(e)
		}
		e.mu.Unlock()

		if expired {
			delete(r.entries, id)
			removed++
		}
	}

	if r.metrics != nil {
		r.metrics.RecordEvicted(removed)
	}
	return removed
}
