// Package shutdown provides graceful shutdown handling.
package shutdown
