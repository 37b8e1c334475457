package mysql

const agencyColumns = `id, name, name_id, description, url, next_page_url`

const getAgencySQL = `
SELECT ` + agencyColumns + `
FROM travel_agencies
WHERE id = ?
`

const getAgencyBySlugSQL = `
SELECT ` + agencyColumns + `
FROM travel_agencies
WHERE name_id = ?
`

const listAgenciesSQL = `
SELECT ` + agencyColumns + `
FROM travel_agencies
ORDER BY id
`

const findCountrySQL = `
SELECT id, name, normalized_name
FROM countries
WHERE normalized_name = ?
`

const insertCountrySQL = `
INSERT INTO countries (name, normalized_name)
VALUES (?, ?)
`

const hotelColumns = `id, name, url, image_url, country_id, travel_agency_id, source_fetched_at, raw_data`

// Hotel identity is scoped to the owning agency: URL when the record has
// one, else name.
const findHotelByURLSQL = `
SELECT ` + hotelColumns + `
FROM hotels
WHERE travel_agency_id = ? AND url = ?
ORDER BY id
LIMIT 1
`

const findHotelByNameSQL = `
SELECT ` + hotelColumns + `
FROM hotels
WHERE travel_agency_id = ? AND name = ?
ORDER BY id
LIMIT 1
`

const insertHotelSQL = `
INSERT INTO hotels
  (name, url, image_url, country_id, travel_agency_id, source_fetched_at, raw_data)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

const updateHotelSQL = `
UPDATE hotels SET
  name              = ?,
  url               = ?,
  image_url         = ?,
  country_id        = ?,
  travel_agency_id  = ?,
  source_fetched_at = ?,
  raw_data          = ?,
  updated_at        = CURRENT_TIMESTAMP
WHERE id = ?
`

// <=> is NULL-safe equality: offers without a URL or term still form a
// coherent snapshot key.
const latestOfferPriceSQL = `
SELECT price
FROM offers
WHERE hotel_id = ? AND url <=> ? AND starts_on <=> ?
ORDER BY created_at DESC, id DESC
LIMIT 1
`

const insertOfferSQL = `
INSERT INTO offers
  (hotel_id, travel_agency_id, name, url, price, price_raw, starts_on, source_fetched_at, raw_data)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const listOffersSQL = `
SELECT id, hotel_id, travel_agency_id, name, url, price, price_raw, starts_on, source_fetched_at, raw_data, created_at
FROM offers
WHERE hotel_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`
