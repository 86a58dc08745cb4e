package main

// General API documentation for swaggo. The served document lives in
// internal/httpapi/swagger_doc.go; keep the two in step.
//
// @title           hypnosd API
// @version         1.0
// @description     Stateless chat gateway in front of a single local llama.cpp engine.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
//
// @schemes http
