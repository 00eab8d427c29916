package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, time.Minute)
	assert.Equal(t, "idem:order.reconcile:3:42", s.Key("order.reconcile", 3, 42))
}
