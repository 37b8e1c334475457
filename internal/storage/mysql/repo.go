package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/cwiklam/cheap-holidays/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func valJSON(b []byte) any {
	if len(b) == 0 {
		return "{}"
	}
	return string(b)
}

func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	n := ni.Int64
	return &n
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) GetAgency(ctx context.Context, id int64) (domain.TravelAgency, error) {
	return r.scanAgency(r.db.QueryRowContext(ctx, getAgencySQL, id))
}

func (r *Repo) GetAgencyBySlug(ctx context.Context, nameID string) (domain.TravelAgency, error) {
	return r.scanAgency(r.db.QueryRowContext(ctx, getAgencyBySlugSQL, nameID))
}

func (r *Repo) scanAgency(row *sql.Row) (domain.TravelAgency, error) {
	var a domain.TravelAgency
	var desc, nextPage sql.NullString
	if err := row.Scan(&a.ID, &a.Name, &a.NameID, &desc, &a.URL, &nextPage); err != nil {
		if err == sql.ErrNoRows {
			return domain.TravelAgency{}, domain.ErrNotFound
		}
		return domain.TravelAgency{}, err
	}
	a.Description = nullStr(desc)
	a.NextPageURL = nullStr(nextPage)
	return a, nil
}

func (r *Repo) ListAgencies(ctx context.Context) ([]domain.TravelAgency, error) {
	rows, err := r.db.QueryContext(ctx, listAgenciesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TravelAgency
	for rows.Next() {
		var a domain.TravelAgency
		var desc, nextPage sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.NameID, &desc, &a.URL, &nextPage); err != nil {
			return nil, err
		}
		a.Description = nullStr(desc)
		a.NextPageURL = nullStr(nextPage)
		out = append(out, a)
	}
	return out, rows.Err()
}

// FindOrCreateCountry resolves by the normalized uniqueness key. A lost
// creation race falls back to re-reading the winner's row.
func (r *Repo) FindOrCreateCountry(ctx context.Context, name, normalized string) (domain.Country, error) {
	c, err := r.findCountry(ctx, normalized)
	if err == nil {
		return c, nil
	}
	if err != sql.ErrNoRows {
		return domain.Country{}, err
	}

	res, err := r.db.ExecContext(ctx, insertCountrySQL, name, normalized)
	if err != nil {
		// likely a concurrent insert on the unique normalized_name
		if c, rerr := r.findCountry(ctx, normalized); rerr == nil {
			return c, nil
		}
		return domain.Country{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Country{}, err
	}
	return domain.Country{ID: id, Name: name, NormalizedName: normalized}, nil
}

func (r *Repo) findCountry(ctx context.Context, normalized string) (domain.Country, error) {
	var c domain.Country
	err := r.db.QueryRowContext(ctx, findCountrySQL, normalized).
		Scan(&c.ID, &c.Name, &c.NormalizedName)
	return c, err
}

// FindHotel looks up by URL when present, else by name, scoped to the
// agency. A miss returns a zero-ID hotel and found=false, ready to be
// filled and saved.
func (r *Repo) FindHotel(ctx context.Context, agencyID int64, url, name string) (domain.Hotel, bool, error) {
	var row *sql.Row
	if url != "" {
		row = r.db.QueryRowContext(ctx, findHotelByURLSQL, agencyID, url)
	} else {
		row = r.db.QueryRowContext(ctx, findHotelByNameSQL, agencyID, name)
	}

	var h domain.Hotel
	var hurl, img sql.NullString
	var countryID, agency sql.NullInt64
	var fetchedAt sql.NullTime
	var raw []byte

	if err := row.Scan(&h.ID, &h.Name, &hurl, &img, &countryID, &agency, &fetchedAt, &raw); err != nil {
		if err == sql.ErrNoRows {
			return domain.Hotel{}, false, nil
		}
		return domain.Hotel{}, false, err
	}
	h.URL = nullStr(hurl)
	h.ImageURL = nullStr(img)
	h.CountryID = nullInt64(countryID)
	h.TravelAgencyID = nullInt64(agency)
	if fetchedAt.Valid {
		h.SourceFetchedAt = fetchedAt.Time
	}
	if len(raw) > 0 {
		h.RawJSON = append([]byte(nil), raw...)
	}
	return h, true, nil
}

// SaveHotel inserts new hotels (assigning the ID) and updates existing
// ones in place.
func (r *Repo) SaveHotel(ctx context.Context, h *domain.Hotel) error {
	if h.ID == 0 {
		res, err := r.db.ExecContext(ctx, insertHotelSQL,
			h.Name,
			valStr(h.URL),
			valStr(h.ImageURL),
			valInt64(h.CountryID),
			valInt64(h.TravelAgencyID),
			h.SourceFetchedAt,
			valJSON(h.RawJSON),
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		h.ID = id
		return nil
	}

	_, err := r.db.ExecContext(ctx, updateHotelSQL,
		h.Name,
		valStr(h.URL),
		valStr(h.ImageURL),
		valInt64(h.CountryID),
		valInt64(h.TravelAgencyID),
		h.SourceFetchedAt,
		valJSON(h.RawJSON),
		h.ID,
	)
	return err
}

func (r *Repo) LatestOfferPrice(ctx context.Context, hotelID int64, url, startsOn *string) (float64, bool, error) {
	var price float64
	err := r.db.QueryRowContext(ctx, latestOfferPriceSQL, hotelID, valStr(url), valStr(startsOn)).Scan(&price)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return price, true, nil
}

func (r *Repo) CreateOffer(ctx context.Context, o domain.Offer) error {
	_, err := r.db.ExecContext(ctx, insertOfferSQL,
		o.HotelID,
		o.TravelAgencyID,
		o.Name,
		valStr(o.URL),
		o.Price,
		valStr(o.PriceRaw),
		valStr(o.StartsOn),
		o.SourceFetchedAt,
		valJSON(o.RawJSON),
	)
	return err
}

func (r *Repo) ListOffers(ctx context.Context, hotelID int64, limit int) ([]domain.Offer, error) {
	rows, err := r.db.QueryContext(ctx, listOffersSQL, hotelID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Offer
	for rows.Next() {
		var o domain.Offer
		var url, priceRaw, startsOn sql.NullString
		var fetchedAt sql.NullTime
		var raw sql.RawBytes
		var createdAt time.Time
		if err := rows.Scan(
			&o.ID,
			&o.HotelID,
			&o.TravelAgencyID,
			&o.Name,
			&url,
			&o.Price,
			&priceRaw,
			&startsOn,
			&fetchedAt,
			&raw,
			&createdAt,
		); err != nil {
			return nil, err
		}
		o.URL = nullStr(url)
		o.PriceRaw = nullStr(priceRaw)
		o.StartsOn = nullStr(startsOn)
		if fetchedAt.Valid {
			o.SourceFetchedAt = fetchedAt.Time
		}
		if len(raw) > 0 {
			o.RawJSON = append([]byte(nil), raw...)
		}
		o.CreatedAt = createdAt
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
