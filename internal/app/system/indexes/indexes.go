// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/stockboard/stockboard/internal/app/store/actions"
	"github.com/stockboard/stockboard/internal/app/store/archive"
	"github.com/stockboard/stockboard/internal/app/store/dailysessions"
	"github.com/stockboard/stockboard/internal/app/store/errorlog"
	"github.com/stockboard/stockboard/internal/app/store/predictions"
	"github.com/stockboard/stockboard/internal/app/store/rawsessions"
	"github.com/stockboard/stockboard/internal/app/store/userstats"
)

// RawSessionTTL is how long a raw session row outlives its last update.
const RawSessionTTL = 7 * 24 * time.Hour

/*
EnsureAll is called at startup. Each store's EnsureIndexes is
idempotent. We aggregate errors so any problem is visible and startup
can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			problems = append(problems, name+": "+err.Error())
		}
	}

	ensure(dailysessions.CollectionName, dailysessions.New(db).EnsureIndexes)
	ensure(userstats.CollectionName, userstats.New(db).EnsureIndexes)
	ensure(rawsessions.CollectionName, rawsessions.New(db, RawSessionTTL).EnsureIndexes)
	ensure(actions.CollectionName, actions.New(db).EnsureIndexes)
	ensure(archive.CollectionName, archive.New(db).EnsureIndexes)
	ensure(predictions.CollectionName, predictions.New(db).EnsureIndexes)
	ensure(errorlog.CollectionName, errorlog.New(db).EnsureIndexes)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
