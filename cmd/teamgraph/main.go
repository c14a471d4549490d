// Command teamgraph runs supervisor-routed agent teams from the terminal.
package main

func main() {
	Execute()
}
