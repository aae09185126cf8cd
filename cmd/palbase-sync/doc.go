// Command palbase-sync aggregates adoptable pet listings into Postgres.
//
// The service pulls from one JSON API (RescueGroups) and five rendered
// websites (Petfinder, Adopt-a-Pet, ASPCA, Best Friends, PetSmart
// Charities), normalizes every listing into a shared pet record, and
// upserts it keyed by (source, source_id). Pets that stop appearing in
// their source are aged out of the active set by a staleness sweep.
//
// Architecture, front to back:
//
//   - fetcher/*: one package per source. API sources page through JSON
//     with resty; website sources render pages through a shared
//     chromedp pool and parse the DOM with goquery, honoring
//     robots.txt and randomized politeness delays.
//   - ingest: the run coordinator. One run log per invocation, one run
//     per source at a time, shelters upserted before their pets, and a
//     staleness sweep after the writes.
//   - storage/postgres: pgx-backed repository with batch upserts that
//     report fresh-insert counts.
//   - api: chi HTTP control plane for manual triggers, run status, and
//     Prometheus metrics.
//   - scheduler: cron loop that fires the nightly sync-all run.
//
// Run "palbase-sync serve" for the long-lived service or
// "palbase-sync sync" for a one-shot pass.
package main
