package cors

import (
	"net/http"

	"github.com/rs/cors"
)

// AddCorsPolicy allows the voting front end served from origins to call the API.
// No origins means any origin.
func AddCorsPolicy(handler http.Handler, origins ...string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
		Debug:            false,
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
	})

	return c.Handler(handler)
}
