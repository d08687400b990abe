package main

import (
	"reviewsync/internal/biz"
	"reviewsync/internal/conf"
)

func newLocale(c *conf.DataForSEO) biz.Locale {
	l := biz.Locale{LanguageCode: "en"}
	if c == nil {
		return l
	}
	if c.LanguageCode != "" {
		l.LanguageCode = c.LanguageCode
	}
	l.LocationName = c.LocationName
	l.LocationCode = c.LocationCode
	return l
}

func newIngestOptions(c *conf.Ingest) biz.IngestOptions {
	if c == nil {
		return biz.IngestOptions{}
	}
	return biz.IngestOptions{
		DefaultDepth:     int(c.DefaultDepth),
		DefaultSinceDays: int(c.DefaultSinceDays),
	}
}

func newAnnotateOptions(c *conf.Annotate) biz.AnnotateOptions {
	if c == nil {
		return biz.AnnotateOptions{}
	}
	return biz.AnnotateOptions{
		DefaultLimit: int(c.DefaultLimit),
		MaxLimit:     int(c.MaxLimit),
		BatchSize:    int(c.BatchSize),
	}
}
