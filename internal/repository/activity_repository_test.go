package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestVersionMatchCoversUnversionedRecords(t *testing.T) {
	assert.Equal(t, bson.M{"$in": bson.A{0, nil}}, versionMatch(0))
	assert.Equal(t, int64(4), versionMatch(4))
}
