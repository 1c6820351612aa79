package services

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/kds"
	"gorm.io/gorm"
)

// Waker is poked after a commit that left work for a background worker.
type Waker interface {
	Wake()
}

// Pusher delivers live messages to connected clients.
type Pusher interface {
	SendTo(audience kds.Audience, msg kds.Message) int
}

type noopWaker struct{}

func (noopWaker) Wake() {}

type noopPusher struct{}

func (noopPusher) SendTo(kds.Audience, kds.Message) int { return 0 }

func utcNow() time.Time { return time.Now().UTC() }

// notFoundOr maps gorm's record-not-found onto the taxonomy.
func notFoundOr(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(format, args...)
	}
	return err
}

func pageLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

var (
	phoneFull    = regexp.MustCompile(`^\+998\d{9}$`)
	phoneNoPlus  = regexp.MustCompile(`^998\d{9}$`)
	phoneLocal   = regexp.MustCompile(`^\d{9}$`)
	phoneCleaner = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// NormalizePhone accepts the Uzbek formats customers type and returns the
// +998XXXXXXXXX form.
func NormalizePhone(raw string) (string, error) {
	p := phoneCleaner.Replace(strings.TrimSpace(raw))
	switch {
	case phoneFull.MatchString(p):
		return p, nil
	case phoneNoPlus.MatchString(p):
		return "+" + p, nil
	case phoneLocal.MatchString(p):
		return "+998" + p, nil
	}
	return "", apperror.Validation("invalid phone number %q, expected +998XXXXXXXXX", raw)
}
