package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           llamad API
// @version         1.0
// @description     HTTP API for a single local LLM inference session.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
