// Package api serves the story archive over HTTP.
//
// Routes are mounted under /api: health and stats, story listing and
// detail, hybrid search, geocoded map data, 2D vector-space projection
// points, and the static framework taxonomy. Story payloads are
// enriched at the edge with geocoded coordinates and the frameworks
// that claim their story type, so the datastore stays free of derived
// data.
//
// Validation failures map to 400, missing stories to 404, everything
// else to 500 with the detail kept in the server log. Health always
// answers 200 and reports database or embedding degradation in the
// payload.
package api
