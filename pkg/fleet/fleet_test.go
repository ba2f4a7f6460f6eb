package fleet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

type stubResult struct {
	vehicle *Vehicle
	err     error
}

func (r stubResult) Decode(v any) error {
	if r.err != nil {
		return r.err
	}

	*(v.(*Vehicle)) = *r.vehicle

	return nil
}

func TestDecodeRegistryRecord(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		vehicle, err := decodeRegistryRecord(stubResult{vehicle: &Vehicle{
			VehicleID: "vehicle-1",
			CompanyID: "company-1",
		}})
		require.NoError(t, err)
		require.NotNil(t, vehicle)
		assert.Equal(t, "vehicle-1", vehicle.VehicleID)
	})

	t.Run("registry miss is not an error", func(t *testing.T) {
		t.Parallel()

		vehicle, err := decodeRegistryRecord(stubResult{err: mongo.ErrNoDocuments})
		require.NoError(t, err)
		assert.Nil(t, vehicle)
	})

	t.Run("corrupt document surfaces the error", func(t *testing.T) {
		t.Parallel()

		decodeErr := errors.New("cannot decode string into float64")

		vehicle, err := decodeRegistryRecord(stubResult{err: decodeErr})
		require.ErrorIs(t, err, decodeErr)
		assert.Nil(t, vehicle)
	})
}
