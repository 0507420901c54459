// Package confloader provides configuration loading for AggMesh.
//
// It uses koanf to merge configuration from multiple sources with
// priority: flags > environment > file > defaults. A fsnotify-based
// watcher supports hot reload of the configuration file.
package confloader
