// Package crawler defines the domain types shared by the harvesting pipeline:
// article titles and title sets, fetched articles, page ids, the collaborator
// interfaces consumed by the orchestrator, and the error taxonomy.
package crawler
