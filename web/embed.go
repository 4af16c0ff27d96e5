package web

import "embed"

// StaticFS embeds the built frontend bundle. index.html doubles as the
// SPA fallback for client-side routes.
//
//go:embed static/*
var StaticFS embed.FS
