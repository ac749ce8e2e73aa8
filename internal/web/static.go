package web

import (
	"embed"
)

// staticFiles holds the control page assets.
//
//go:embed static/*
var staticFiles embed.FS
