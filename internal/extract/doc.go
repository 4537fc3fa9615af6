// Package extract turns article markup into candidate outgoing titles and
// transcluded-page titles.
//
// Two parsers implement the Parser capability: WikitextParser reads raw
// markup, HTMLParser reads the rendered page. Extractor combines them into the
// link/transclusion contract consumed by the orchestrator, including the
// seed-discovery mode used when bootstrapping from a curated contents page.
package extract
