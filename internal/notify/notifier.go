package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"golang.org/x/time/rate"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/observability/metrics"
	"github.com/aryan0dhankhar/smartcrm/internal/reliability/circuitbreaker"
)

var temporaryPasswordTemplate = template.Must(template.New("temporary_password").Parse(`Hi {{.FirstName}},

Your account has been created in {{.AppName}}.

Temporary password: {{.Password}}

Please login and change your password immediately.

Regards,
{{.AppName}} Team
`))

// Config holds notifier settings
type Config struct {
	AppName   string
	RateLimit rate.Limit
	Burst     int
	// breaker opens after FailureThreshold consecutive failures and probes again after CooldownPeriod
	FailureThreshold int32
	CooldownPeriod   time.Duration
}

func DefaultConfig(appName string) Config {
	return Config{
		AppName:          appName,
		RateLimit:        rate.Every(100 * time.Millisecond),
		Burst:            20,
		FailureThreshold: 5,
		CooldownPeriod:   30 * time.Second,
	}
}

// Notifier renders account emails and sends them through a Mailer, throttled
// by an overall rate limit and guarded by a circuit breaker.
type Notifier struct {
	mailer  Mailer
	appName string
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

func NewNotifier(mailer Mailer, cfg Config, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := circuitbreaker.NewCircuitBreaker(cfg.FailureThreshold, 1, cfg.CooldownPeriod)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("mail circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &Notifier{
		mailer:  mailer,
		appName: cfg.AppName,
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.Burst),
		breaker: breaker,
		logger:  logger,
	}
}

// SendTemporaryPassword emails a newly issued single-use password.
func (n *Notifier) SendTemporaryPassword(ctx context.Context, user *domain.User, password string) error {
	var body bytes.Buffer
	err := temporaryPasswordTemplate.Execute(&body, struct {
		FirstName string
		AppName   string
		Password  string
	}{user.FirstName, n.appName, password})
	if err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}
	return n.send(ctx, Message{
		To:      user.Email,
		Subject: fmt.Sprintf("Your Temporary Password for %s", n.appName),
		Body:    body.String(),
	})
}

func (n *Notifier) send(ctx context.Context, msg Message) error {
	if !n.breaker.AllowRequest() {
		metrics.ObserveEmail("rejected")
		return fmt.Errorf("%w: mail relay circuit open", domain.ErrServiceUnavailable)
	}
	if err := n.limiter.Wait(ctx); err != nil {
		metrics.ObserveEmail("throttled")
		return fmt.Errorf("%w: mail rate limit: %v", domain.ErrServiceUnavailable, err)
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.breaker.RecordFailure()
		metrics.ObserveEmail("failed")
		n.logger.Error("failed to send email",
			slog.String("to", msg.To),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	n.breaker.RecordSuccess()
	metrics.ObserveEmail("sent")
	return nil
}
