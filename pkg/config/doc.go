// Package config loads the dashboard configuration.
//
// # Overview
//
// Values come from built-in defaults, then an optional YAML file, then
// environment variables. Load validates the result.
//
// # Environment
//
// Backends:
//
//	TUTORIA_API_URL="http://localhost:5001/api"       # or NEXT_PUBLIC_API_URL
//	TUTORIA_AUTH_API_URL="http://localhost:5001/api"  # or NEXT_PUBLIC_AUTH_API_URL
//	TUTORIA_AI_API_URL="http://localhost:5002"        # or NEXT_PUBLIC_AI_API_URL
//	TUTORIA_API_TIMEOUT="30s"
//	TUTORIA_MAX_REFRESH_FAILURES="3"
//
// Server:
//
//	TUTORIA_HOST="127.0.0.1"
//	TUTORIA_PORT="3000"
//	TUTORIA_READ_TIMEOUT="15s"
//	TUTORIA_WRITE_TIMEOUT="45s"
//
// Session:
//
//	TUTORIA_SESSION_STORAGE="file"  # file, memory, redis, sqlite
//	TUTORIA_SESSION_PATH="~/.config/tutoria/session.json"
//	TUTORIA_REDIS_URL="redis://localhost:6379/0"
//	TUTORIA_REFRESH_SCHEDULE="@every 45m"
//	TUTORIA_LOGIN_RATE_LIMIT="10"
//
// Authorization and observability:
//
//	TUTORIA_PAGE_DEFAULT_DENY="false"
//	TUTORIA_LOG_LEVEL="info"  # debug, info, warn, error
//	TUTORIA_METRICS_ENABLED="true"
//
// # YAML file
//
// The file named by TUTORIA_CONFIG (or passed to Load) mirrors the struct:
//
//	server:
//	  port: "3000"
//	api:
//	  management_url: https://api.tutoria.example/api
//	  timeout: 20s
//	session:
//	  storage: sqlite
//	  path: /var/lib/tutoria/session.db
package config
