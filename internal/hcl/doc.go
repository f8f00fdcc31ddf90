// Package hcl loads graph files written in HCL into the config model.
//
//	data "user" {
//	  value = { name = "ann", tags = ["a", "b"] }
//	}
//
//	variable "counter" {
//	  type    = number
//	  default = 1
//	}
//
//	proxy "upstream" {
//	  url         = "ws://localhost:8080/ws"
//	  transport   = "websocket"
//	  retries     = 3
//	  retry_delay = "250ms"
//	  timeout     = "5s"
//	  batch       = true
//	}
//
//	env "settings" {
//	  prefix = "APP_"
//	}
//
//	fetch "status" {
//	  url      = "https://status.example.com/api.json"
//	  interval = "30s"
//	}
package hcl
