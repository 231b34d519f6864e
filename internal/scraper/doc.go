// Package scraper provides HTTP fetching and extraction for the Comedy Mothership
// shows page.
//
// The page is fetched once per run and handed to a Strategy, which turns it into
// raw field groups (Cards). Two strategies exist: CardStrategy walks the
// server-rendered EventCard markup, EmbeddedStrategy reads the JSON payload the
// page ships in its Next.js data script. The Parser then maps each Card to at
// most one event.Event, skipping malformed cards and presale listings.
package scraper
