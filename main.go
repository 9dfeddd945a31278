package main

import "github.com/ValentinKolb/raftex/cmd"

func main() {
	cmd.Execute()
}
