package main

import (
	"deckharvest/cmd/deckharvest/commands"
	"deckharvest/pkg/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
