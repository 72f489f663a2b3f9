package main

//go:generate swag init -g cmd/monitor/main.go -o docs

// @title           Portfolio ROI Monitor API
// @version         0.1.0
// @description     Price ingestion, NAV recompute job control, and portfolio performance queries.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
