package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/kylegordy/cpd-zones/internal/db"
	"github.com/kylegordy/cpd-zones/internal/geocoding"
	"github.com/kylegordy/cpd-zones/internal/middleware"
	"github.com/kylegordy/cpd-zones/internal/zones"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")

	gdb, err := db.Open(os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	if err := zones.Init(gdb); err != nil {
		log.Fatal("Failed to set up zone tables: ", err)
	}

	store := zones.NewStore(gdb)
	resolver := zones.NewResolver(store, os.Getenv("ZONE_CACHE") == "1")
	if err := resolver.WarmCache(context.Background()); err != nil {
		log.Printf("WARNING: region cache warm failed, falling back to PostGIS lookups: %v", err)
	}

	var geocoder geocoding.Geocoder
	if client, err := geocoding.NewClient(); err != nil {
		log.Fatal("Failed to build geocoding client: ", err)
	} else if client != nil {
		geocoder = client
	} else {
		log.Println("GOOGLE_MAPS_API_KEY not set; address search disabled")
	}

	handler := zones.NewHandler(resolver, geocoder)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5050"
	}

	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)
	r.Get("/", RootHandler)
	r.Mount("/zones", handler.SetupRoutes())

	fmt.Println("Server listening on port :" + port + "...")

	http.ListenAndServe("0.0.0.0:"+port, r)
}
