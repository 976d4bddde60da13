package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/events"
)

// FastArgon2Params keeps password hashing cheap in tests.
var FastArgon2Params = application.Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults. The default
// clock starts at ReferenceTime in ReferenceLocation.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(ReferenceTime()),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(ReferenceTime())
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// ReservationServiceDeps captures dependencies for constructing a reservation service.
type ReservationServiceDeps struct {
	Reservations application.ReservationRepository
	Publisher    application.SnapshotPublisher
	IDGenerator  func() string
	Now          func() time.Time
	Location     *time.Location
	Logger       *slog.Logger
}

// NewReservationService builds a reservation service using the supplied
// dependencies combined with the factory defaults. A nil publisher gets a
// fresh broker driven by the factory clock.
func (f *ServiceFactory) NewReservationService(deps ReservationServiceDeps) *application.ReservationService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	location := deps.Location
	if location == nil {
		location = f.Clock.Location()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NewBroker(now)
	}
	return application.NewReservationServiceWithLogger(
		deps.Reservations,
		publisher,
		idGen,
		now,
		location,
		deps.Logger,
	)
}

// IdentityServiceDeps captures dependencies for constructing an identity service.
type IdentityServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.SessionRepository
	Admins         application.AdminChecker
	Mailer         application.Mailer
	TokenGenerator func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	ResetTokenTTL  time.Duration
	ResetSecret    []byte
	Logger         *slog.Logger
}

// NewIdentityService builds an identity service that hashes with
// FastArgon2Params.
func (f *ServiceFactory) NewIdentityService(deps IdentityServiceDeps) *application.IdentityService {
	token := deps.TokenGenerator
	if token == nil {
		token = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	secret := deps.ResetSecret
	if len(secret) == 0 {
		secret = []byte("test-reset-secret")
	}
	return application.NewIdentityServiceWithLogger(
		deps.Credentials,
		deps.Sessions,
		deps.Admins,
		deps.Mailer,
		token,
		now,
		application.IdentityServiceConfig{
			SessionTTL:    deps.SessionTTL,
			ResetTokenTTL: deps.ResetTokenTTL,
			ResetSecret:   secret,
			HashPassword:  application.NewPasswordHasher(FastArgon2Params),
		},
		deps.Logger,
	)
}

// NewMirror builds a mirror over source that submits writes to writer and
// reads the factory clock.
func (f *ServiceFactory) NewMirror(source events.Source, writer application.ReservationWriter, order application.SortOrder) *application.Mirror {
	return application.NewMirror(source, writer, application.MirrorConfig{
		Order:    order,
		Location: f.Clock.Location(),
		Now:      f.Clock.NowFunc(),
	})
}
