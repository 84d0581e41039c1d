package repositories

import (
	"time"

	"github.com/google/uuid"
)

func uuidFromString(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

func timeFromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
