package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reviewsync/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type placeRepo struct {
	data *Data
	log  *log.Helper
}

// NewPlaceRepo creates a new place repository
func NewPlaceRepo(data *Data, logger log.Logger) biz.PlaceRepo {
	return &placeRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *placeRepo) FindByID(ctx context.Context, id string) (*biz.Place, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *placeRepo) FindByGooglePlaceID(ctx context.Context, placeID string) (*biz.Place, error) {
	return r.findOne(ctx, "google_place_id = ?", placeID)
}

func (r *placeRepo) FindByGoogleCID(ctx context.Context, cid string) (*biz.Place, error) {
	return r.findOne(ctx, "google_cid = ?", cid)
}

func (r *placeRepo) FindByTripadvisorPath(ctx context.Context, urlPath string) (*biz.Place, error) {
	return r.findOne(ctx, "tripadvisor_url_path = ?", urlPath)
}

func (r *placeRepo) findOne(ctx context.Context, query string, arg interface{}) (*biz.Place, error) {
	var m Place
	err := r.data.db.WithContext(ctx).Where(query, arg).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, biz.ErrPlaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query place: %w", err)
	}
	return placeToBiz(&m)
}

// UpsertPlace matches an existing row by Google place id, then by CID, and
// updates it in place, filling in identifiers the row was missing. Without a
// match the row is inserted; with a place id the insert is an
// INSERT ... ON CONFLICT so concurrent onboarding of one business converges.
func (r *placeRepo) UpsertPlace(ctx context.Context, place *biz.Place) (bool, error) {
	if place.GooglePlaceID == nil && place.GoogleCID == nil {
		return false, fmt.Errorf("%w: place needs a google place id or cid", biz.ErrInvalidArgument)
	}
	m, err := placeFromBiz(place)
	if err != nil {
		return false, err
	}
	columns := make([]string, 0, len(placeProfileColumns)+3)
	for _, c := range placeProfileColumns {
		if c == "google_cid" && place.GoogleCID == nil {
			continue
		}
		columns = append(columns, c)
	}
	if place.TripadvisorURLPath != nil {
		columns = append(columns, "tripadvisor_url_path")
	}

	var created bool
	err = r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := matchPlace(tx, place)
		if err != nil {
			return err
		}
		if existing != nil {
			m.ID = existing.ID
			m.CreatedAt = existing.CreatedAt
			update := columns
			if place.GooglePlaceID != nil {
				update = append(append([]string(nil), columns...), "google_place_id")
			}
			return tx.Model(&Place{}).Where("id = ?", existing.ID).Select(update).Updates(m).Error
		}

		newID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate place ID: %w", err)
		}
		m.ID = newID.String()
		if place.GooglePlaceID == nil {
			created = true
			return tx.Create(m).Error
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "google_place_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).Create(m).Error
		if err != nil {
			return err
		}
		// The returned id is unreliable on the conflict path, so read it back.
		var stored Place
		if err := tx.Select("id", "created_at").Where("google_place_id = ?", *place.GooglePlaceID).Take(&stored).Error; err != nil {
			return fmt.Errorf("failed to reload place: %w", err)
		}
		created = stored.ID == m.ID
		m.ID = stored.ID
		m.CreatedAt = stored.CreatedAt
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert place: %w", err)
	}
	place.ID = m.ID
	place.CreatedAt = m.CreatedAt
	return created, nil
}

// matchPlace finds the row a profile belongs to, or nil.
func matchPlace(tx *gorm.DB, place *biz.Place) (*Place, error) {
	lookups := []struct {
		column string
		value  *string
	}{
		{"google_place_id", place.GooglePlaceID},
		{"google_cid", place.GoogleCID},
	}
	for _, l := range lookups {
		if l.value == nil {
			continue
		}
		var existing Place
		err := tx.Select("id", "created_at").Where(l.column+" = ?", *l.value).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return nil, nil
}

func (r *placeRepo) SetTripadvisorPath(ctx context.Context, placeID, urlPath string) error {
	return r.setIdentifier(ctx, placeID, "tripadvisor_url_path", urlPath)
}

func (r *placeRepo) SetGoogleCID(ctx context.Context, placeID, cid string) error {
	return r.setIdentifier(ctx, placeID, "google_cid", cid)
}

func (r *placeRepo) setIdentifier(ctx context.Context, placeID, column, value string) error {
	res := r.data.db.WithContext(ctx).Model(&Place{}).
		Where("id = ?", placeID).
		Updates(map[string]interface{}{column: value, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("failed to set %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return biz.ErrPlaceNotFound
	}
	return nil
}

// UpdateRatingSnapshot writes exactly one provider column.
func (r *placeRepo) UpdateRatingSnapshot(ctx context.Context, placeID string, provider biz.Provider, snap *biz.RatingSnapshot) error {
	column, err := snapshotColumn(provider)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode %s snapshot: %w", provider, err)
	}
	res := r.data.db.WithContext(ctx).Model(&Place{}).
		Where("id = ?", placeID).
		Updates(map[string]interface{}{column: datatypes.JSON(raw), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("failed to store %s snapshot: %w", provider, res.Error)
	}
	if res.RowsAffected == 0 {
		return biz.ErrPlaceNotFound
	}
	r.log.Infof("stored %s rating for %s: %.2f (%d votes)", provider, placeID, snap.Value, snap.Votes)
	return nil
}

func snapshotColumn(provider biz.Provider) (string, error) {
	switch provider {
	case biz.ProviderGoogle:
		return "google_ratings", nil
	case biz.ProviderTripadvisor:
		return "tripadvisor_ratings", nil
	}
	return "", fmt.Errorf("%w: no rating slot for provider %q", biz.ErrInvalidArgument, provider)
}

func placeFromBiz(p *biz.Place) (*Place, error) {
	m := &Place{
		ID:                 p.ID,
		GooglePlaceID:      p.GooglePlaceID,
		GoogleCID:          p.GoogleCID,
		TripadvisorURLPath: p.TripadvisorURLPath,
		FeatureID:          p.FeatureID,
		Name:               p.Name,
		OriginalTitle:      p.OriginalTitle,
		Description:        p.Description,
		Category:           p.Category,
		Phone:              p.Phone,
		URL:                p.URL,
		Domain:             p.Domain,
		MainImage:          p.MainImage,
		Address:            p.Address,
		City:               p.City,
		Region:             p.Region,
		Zip:                p.Zip,
		CountryCode:        p.CountryCode,
		Latitude:           p.Latitude,
		Longitude:          p.Longitude,
		IsClaimed:          p.IsClaimed,
		CurrentStatus:      p.CurrentStatus,
		PriceLevel:         p.PriceLevel,
	}
	if len(p.Raw) > 0 {
		m.BusinessInfoRaw = datatypes.JSON(p.Raw)
	}
	if p.PlaceTopics != nil {
		raw, err := json.Marshal(p.PlaceTopics)
		if err != nil {
			return nil, fmt.Errorf("failed to encode place topics: %w", err)
		}
		m.PlaceTopics = raw
	}
	return m, nil
}

func placeToBiz(m *Place) (*biz.Place, error) {
	p := &biz.Place{
		ID:                 m.ID,
		GooglePlaceID:      m.GooglePlaceID,
		GoogleCID:          m.GoogleCID,
		TripadvisorURLPath: m.TripadvisorURLPath,
		FeatureID:          m.FeatureID,
		Name:               m.Name,
		OriginalTitle:      m.OriginalTitle,
		Description:        m.Description,
		Category:           m.Category,
		Phone:              m.Phone,
		URL:                m.URL,
		Domain:             m.Domain,
		MainImage:          m.MainImage,
		Address:            m.Address,
		City:               m.City,
		Region:             m.Region,
		Zip:                m.Zip,
		CountryCode:        m.CountryCode,
		Latitude:           m.Latitude,
		Longitude:          m.Longitude,
		IsClaimed:          m.IsClaimed,
		CurrentStatus:      m.CurrentStatus,
		PriceLevel:         m.PriceLevel,
		Raw:                json.RawMessage(m.BusinessInfoRaw),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if len(m.PlaceTopics) > 0 {
		if err := json.Unmarshal(m.PlaceTopics, &p.PlaceTopics); err != nil {
			return nil, fmt.Errorf("failed to decode place topics: %w", err)
		}
	}
	var err error
	if p.GoogleRating, err = decodeSnapshot(m.GoogleRatings); err != nil {
		return nil, err
	}
	if p.TripadvisorRating, err = decodeSnapshot(m.TripadvisorRatings); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeSnapshot(raw datatypes.JSON) (*biz.RatingSnapshot, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s biz.RatingSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode rating snapshot: %w", err)
	}
	return &s, nil
}
