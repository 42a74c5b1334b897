package types

import (
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex sched_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortIDWithPrefix returns a short human-facing reference with a
// prefix, capped at 12 characters, e.g. `DD-8QX2MA`. Used for batch and
// mandate references that end up in bank files and member communications.
func GenerateShortIDWithPrefix(prefix string) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return ""
	}
	id = strings.ReplaceAll(id, "-", "")

	availableLen := 12 - len(prefix)
	if availableLen <= 0 {
		return ""
	}

	if len(id) > availableLen {
		id = id[:availableLen]
	}

	return strings.ToUpper(fmt.Sprintf("%s%s", prefix, id))
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_SCHEDULE              = "sched"
	UUID_PREFIX_MANDATE               = "mndt"
	UUID_PREFIX_BATCH                 = "batch"
	UUID_PREFIX_BATCH_TRANSACTION     = "txn"
	UUID_PREFIX_FAILURE_RECORD        = "fail"
	UUID_PREFIX_NOTIFICATION_DISPATCH = "ntfy"
	UUID_PREFIX_INSTALLMENT           = "inst"
)

const (
	SHORT_ID_PREFIX_BATCH   = "DD-"
	SHORT_ID_PREFIX_MANDATE = "MND-"
)
