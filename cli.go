package main

var cli struct {
	Verbose bool   `short:"v" help:"Prints debug output"`
	Config  string `help:"Path to the config file" type:"path"`

	Transmit struct {
		DryRun bool `short:"t" help:"Configure the radio and run the send loop without transmitting"`
		Debug  bool `short:"d" help:"Dump the radio registers after configuration"`
	} `cmd:"" default:"withargs" help:"Configure the radio and send the gate remote burst (default)"`

	Inspect struct {
		Groups []string `arg:"" optional:"" help:"Register groups to decode, e.g. RegBitrate RegOcp"`
	} `cmd:"" help:"Decode the live radio registers without configuring or transmitting"`

	Serve struct {
	} `cmd:"" help:"Starts the HTTP trigger front end"`
}
