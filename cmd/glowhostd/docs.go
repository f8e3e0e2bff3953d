package main

// General API documentation annotations for swaggo. No generated docs
// package is checked in.
//
// @title           glowhostd API
// @version         1.0
// @description     HTTP API for the heterogeneous neural-network host runtime: network lifecycle and inference.
//
// @contact.name   glowhostd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
