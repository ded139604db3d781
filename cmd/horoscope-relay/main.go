package main

import (
	"horoscope-relay/cmd/horoscope-relay/commands"
	"horoscope-relay/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
