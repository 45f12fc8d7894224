// Package context holds the server's runtime identity, shared by the
// transports and the management facade.
package context

import (
	"math"

	"github.com/google/uuid"

	"github.com/free5gc/util/idgenerator"
)

type OcsContext struct {
	NfId string
	Name string

	// RatingSessionGenerator allocates correlation ids for rating-engine
	// round trips.
	RatingSessionGenerator *idgenerator.IDGenerator
}

func New(name string) *OcsContext {
	return &OcsContext{
		NfId:                   uuid.New().String(),
		Name:                   name,
		RatingSessionGenerator: idgenerator.NewGenerator(1, math.MaxUint32),
	}
}
