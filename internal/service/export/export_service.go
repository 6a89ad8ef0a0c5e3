// Package export publishes a daily summary of harvest sessions and silo bags
// to a spreadsheet.
package export

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/domain/models"
	repo "github.com/mamadbah2/harvest/internal/repository/sheets"
	"github.com/mamadbah2/harvest/internal/store"
)

const (
	dateLayout    = "2006-01-02"
	sessionsRange = "Sessions!A1:N"
	silobagsRange = "SiloBags!A1:I"
)

var (
	sessionHeader = []interface{}{
		"id", "date", "campaign", "field", "plot", "crop", "manager", "status",
		"hectares", "harvested_hectares", "harvested_kgs", "yield_harvested", "yield_seed", "real_vs_projected",
	}
	silobagHeader = []interface{}{
		"id", "date", "name", "field", "crop", "status", "initial_kg", "current_kg", "difference_kg",
	}
)

// Service renders store documents into sheet rows.
type Service struct {
	reader         store.Reader
	sheets         repo.Repository
	organizationID string
	logger         *zap.Logger
}

// NewService wires a new export service instance.
func NewService(reader store.Reader, sheets repo.Repository, organizationID string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{reader: reader, sheets: sheets, organizationID: organizationID, logger: logger}
}

// Run rewrites both summary tabs from the current store contents.
func (s *Service) Run(ctx context.Context) error {
	sessions, err := s.sessionRows(ctx)
	if err != nil {
		return err
	}
	if err := s.sheets.ReplaceRange(ctx, sessionsRange, sessions); err != nil {
		return fmt.Errorf("export sessions: %w", err)
	}

	bags, err := s.silobagRows(ctx)
	if err != nil {
		return err
	}
	if err := s.sheets.ReplaceRange(ctx, silobagsRange, bags); err != nil {
		return fmt.Errorf("export silo bags: %w", err)
	}

	s.logger.Info("export written", zap.Int("sessions", len(sessions)-1), zap.Int("silo_bags", len(bags)-1))
	return nil
}

func (s *Service) sessionRows(ctx context.Context) ([][]interface{}, error) {
	docs, err := s.reader.Find(ctx, s.query(models.CollectionSessions))
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	rows := [][]interface{}{sessionHeader}
	for _, doc := range docs {
		var sess models.HarvestSession
		if err := store.Decode(doc, &sess); err != nil {
			s.logger.Debug("skip undecodable session", zap.Any("id", doc["_id"]), zap.Error(err))
			continue
		}
		rows = append(rows, []interface{}{
			sess.ID,
			formatDate(sess.Date),
			sess.Campaign.Name,
			sess.Field.Name,
			sess.Plot.Name,
			sess.Crop.Name,
			sess.HarvestManager.Name,
			string(sess.Status),
			round2(sess.Hectares),
			round2(sess.HarvestedHectares),
			round2(sess.HarvestedKgs),
			round2(sess.Yields.Harvested),
			round2(sess.Yields.Seed),
			round2(sess.Yields.RealVsProjected),
		})
	}
	return rows, nil
}

func (s *Service) silobagRows(ctx context.Context) ([][]interface{}, error) {
	docs, err := s.reader.Find(ctx, s.query(models.CollectionSilobags))
	if err != nil {
		return nil, fmt.Errorf("load silo bags: %w", err)
	}
	rows := [][]interface{}{silobagHeader}
	for _, doc := range docs {
		var bag models.Silobag
		if err := store.Decode(doc, &bag); err != nil {
			s.logger.Debug("skip undecodable silo bag", zap.Any("id", doc["_id"]), zap.Error(err))
			continue
		}
		var difference interface{} = ""
		if bag.DifferenceKg != nil {
			difference = round2(*bag.DifferenceKg)
		}
		rows = append(rows, []interface{}{
			bag.ID,
			formatDate(bag.Date),
			bag.Name,
			bag.Field.Name,
			bag.Crop.Name,
			string(bag.Status),
			round2(bag.InitialKg),
			round2(bag.CurrentKg),
			difference,
		})
	}
	return rows, nil
}

func (s *Service) query(collection string) store.Query {
	q := store.Query{Collection: collection}
	if s.organizationID != "" {
		q.Filters = []store.Filter{store.Where("organization_id", s.organizationID)}
	}
	return q
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// round2 keeps the sheet readable; stored values are never rounded.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
