package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/duespay/duespay/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment    DeploymentConfig    `validate:"required"`
	Server        ServerConfig        `validate:"required"`
	Logging       LoggingConfig       `validate:"required"`
	Postgres      PostgresConfig      `validate:"required"`
	Billing       BillingConfig       `validate:"required"`
	Creditor      CreditorConfig      `validate:"required"`
	Ledger        LedgerConfig        `validate:"required"`
	Notifications NotificationsConfig `validate:"required"`
	Events        EventsConfig        `validate:"required"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host         string `validate:"required"`
	Port         int    `validate:"required"`
	User         string `validate:"required"`
	Password     string
	DBName       string `validate:"required"`
	SSLMode      string `validate:"required"`
	MaxOpenConns int
	MaxIdleConns int
}

// BillingConfig carries the recognized billing options. Lead times and the
// failure threshold are validated at load time: a bad value aborts the whole
// run before any invoice or batch is touched.
type BillingConfig struct {
	// ExecutionDay is the day-of-month target for batch execution
	ExecutionDay int `mapstructure:"billing_execution_day" validate:"required,min=1,max=28"`
	// FrstLeadBusinessDays is the pre-notification lead time for batches
	// containing first-use collections
	FrstLeadBusinessDays int `mapstructure:"frst_lead_business_days" validate:"required,min=1"`
	// RcurLeadBusinessDays is the lead time for recurring-only batches
	RcurLeadBusinessDays int `mapstructure:"rcur_lead_business_days" validate:"required,min=1"`
	// InvoiceLookaheadDays is how far ahead of next_invoice_date the daily
	// generation run reaches
	InvoiceLookaheadDays int `mapstructure:"invoice_lookahead_days" validate:"min=0"`
	// MaxConsecutiveFailures is the review threshold; every failure beyond it
	// parks the schedule in manual review
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures_before_review" validate:"min=1"`
	// GracePeriodDays is the review window granted when an operator places a
	// schedule in grace period
	GracePeriodDays int `mapstructure:"grace_period_days" validate:"min=1"`
	// Holidays lists non-business days (YYYY-MM-DD) on top of weekends
	Holidays []string `mapstructure:"holidays"`
	// Currency is the collection currency for emitted batches
	Currency string `mapstructure:"currency" validate:"required,len=3"`
}

// CreditorConfig identifies the collecting organization in the bank file
type CreditorConfig struct {
	Name       string `validate:"required"`
	IBAN       string `validate:"required"`
	BIC        string `validate:"required"`
	CreditorID string `mapstructure:"creditor_id" validate:"required"`
}

// LedgerConfig points at the external ledger collaborator
type LedgerConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotificationsConfig drives the staged notification scheduler
type NotificationsConfig struct {
	// StageOffsets are signed day offsets relative to next_invoice_date
	StageOffsets []int `mapstructure:"notification_stage_offsets"`
	// TransportURL is the delivery transport endpoint; empty disables dispatch
	TransportURL string        `mapstructure:"transport_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// EventsConfig drives the operator event stream
type EventsConfig struct {
	Topic string `mapstructure:"topic" validate:"required"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/duespay")

	v.SetEnvPrefix("DUESPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.maxopenconns", 10)
	v.SetDefault("postgres.maxidleconns", 5)
	v.SetDefault("billing.billing_execution_day", 26)
	v.SetDefault("billing.frst_lead_business_days", 5)
	v.SetDefault("billing.rcur_lead_business_days", 2)
	v.SetDefault("billing.invoice_lookahead_days", 7)
	v.SetDefault("billing.max_consecutive_failures_before_review", 1)
	v.SetDefault("billing.grace_period_days", 14)
	v.SetDefault("billing.currency", "EUR")
	v.SetDefault("ledger.timeout", 10*time.Second)
	v.SetDefault("notifications.notification_stage_offsets", types.DefaultNotificationStageOffsets)
	v.SetDefault("notifications.timeout", 10*time.Second)
	v.SetDefault("events.topic", "operator_events")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	// FRST collections require the longer lead time; a configuration that
	// inverts the two would silently violate the pre-notification rules.
	if c.Billing.FrstLeadBusinessDays < c.Billing.RcurLeadBusinessDays {
		return fmt.Errorf(
			"frst_lead_business_days (%d) must be >= rcur_lead_business_days (%d)",
			c.Billing.FrstLeadBusinessDays, c.Billing.RcurLeadBusinessDays,
		)
	}

	if _, err := types.NewCalendar(c.Billing.Holidays); err != nil {
		return err
	}

	for _, offset := range c.Notifications.StageOffsets {
		if _, err := types.DuesStageForOffset(offset); err != nil {
			return fmt.Errorf("unsupported notification stage offset %d", offset)
		}
		// A pre-invoice stage needs its invoice generated before the stage
		// date; with a shorter lookahead the coverage window only advances
		// after the stage date has passed and the stage never fires.
		if offset < 0 && -offset > c.Billing.InvoiceLookaheadDays {
			return fmt.Errorf(
				"invoice_lookahead_days (%d) must cover notification stage offset %d",
				c.Billing.InvoiceLookaheadDays, offset,
			)
		}
	}

	return nil
}

// GetDefaultConfig returns a default configuration for local development and
// tests. This is useful for running scripts or other non-web applications.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Postgres: PostgresConfig{
			Host: "localhost", Port: 5432, User: "duespay",
			DBName: "duespay", SSLMode: "disable",
			MaxOpenConns: 10, MaxIdleConns: 5,
		},
		Billing: BillingConfig{
			ExecutionDay:           26,
			FrstLeadBusinessDays:   5,
			RcurLeadBusinessDays:   2,
			InvoiceLookaheadDays:   7,
			MaxConsecutiveFailures: 1,
			GracePeriodDays:        14,
			Currency:               "EUR",
		},
		Creditor: CreditorConfig{
			Name:       "Example Association",
			IBAN:       "NL91ABNA0417164300",
			BIC:        "ABNANL2A",
			CreditorID: "NL13ZZZ123456780000",
		},
		Ledger: LedgerConfig{
			BaseURL: "http://localhost:9090",
			Timeout: 10 * time.Second,
		},
		Notifications: NotificationsConfig{
			StageOffsets: types.DefaultNotificationStageOffsets,
			Timeout:      10 * time.Second,
		},
		Events: EventsConfig{Topic: "operator_events"},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
