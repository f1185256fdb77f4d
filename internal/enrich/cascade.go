// Package enrich fills the gender, birthday and zodiac columns of RealiteaseInfo by
// asking bio sources in priority order.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"realitease/internal/bio"
	"realitease/internal/components/telemetry"
)

const report_cascade_source = "cascade.source"

// Cascade asks its sources in order until gender and birthday are both known.
type Cascade struct {
	sources []bio.Source
	tel     telemetry.API
}

func NewCascade(tel telemetry.API, sources ...bio.Source) Cascade {
	return Cascade{
		sources: sources,
		tel:     telemetry.NewScopedAPI("enrich", tel),
	}
}

// Sources returns the names of the sources in the order they are asked.
func (c Cascade) Sources() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return names
}

// Lookup returns what the sources found about a person. A source failing is reported and
// skipped, only a cancelled ctx stops the cascade early.
func (c Cascade) Lookup(ctx context.Context, person bio.Person) (bio.Record, error) {
	var record bio.Record
	for _, source := range c.sources {
		if err := ctx.Err(); err != nil {
			return record, err
		}
		res, err := source.Lookup(ctx, person)
		switch {
		case errors.Is(err, bio.ErrNotFound):
			c.tel.ReportDebug(fmt.Sprintf("%s: nothing on %s", source.Name(), person.Name))
			continue
		case err != nil && ctx.Err() != nil:
			return record, ctx.Err()
		case err != nil:
			c.tel.ReportWarning(report_cascade_source, err, source.Name(), person.Name)
			continue
		}

		if record.Merge(source.Name(), res) {
			c.tel.ReportDebug(fmt.Sprintf(
				"%s: %s gender=%q birthday=%q",
				source.Name(), person.Name, res.Gender, res.Birthday,
			))
		}
		if record.Complete() {
			break
		}
	}
	record.ResolveGender(person.Name)
	return record, nil
}
