// Command socrates-gateway serves Socratic mentoring conversations.
//
// Usage:
//
//	socrates-gateway [--config PATH] serve
//	socrates-gateway [--config PATH] turn [--conversation ID] [--resume] MESSAGE...
//	socrates-gateway [--config PATH] token --subject NAME [--ttl 720h]
//
// A .env file in the working directory is loaded before the configuration.
// Without a config file the gateway runs with the scripted provider.
package main
