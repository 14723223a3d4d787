// Command modbusd serves a modbus TCP slave whose address space is
// declared by a YAML layout file. The datastore backing each declared
// unit is sized to cover its layout and holds at least -size cells per
// sub-space; every cell of the datastore is served, whether or not the
// layout names it.
//
// An example layout file:
//
//	slaves:
//	  0:
//	    holding_registers:
//	      variables:
//	        - {name: x, type: i16, address: 2}
//	        - {name: y, type: i16}
//	      byteorder: ">"
//	    discrete_inputs:
//	      - {name: result}
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	modbus "github.com/Argon343/pretty-modbus"
)

func main() {
	listen := flag.String("listen", "localhost:5020", "endpoint to listen on")
	layoutFile := flag.String("layout", "", "path of the YAML layout file")
	size := flag.Int("size", 100, "minimum number of cells per sub-space")
	flag.Parse()

	if *layoutFile == "" {
		log.Println("info: no layout file specified. Use the --help flag for how to use the flags.")
		return
	}

	buf, err := os.ReadFile(*layoutFile)
	if err != nil {
		log.Printf("error: reading layout file: %v\n", err)
		return
	}
	layout, err := modbus.ParseServerLayout(buf)
	if err != nil {
		log.Printf("error: %v\n", err)
		return
	}

	server := modbus.NewBackgroundServer(*listen, datastore(layout, *size), layout)
	if err := server.Start(); err != nil {
		log.Printf("error: starting server: %v\n", err)
		return
	}
	defer server.Stop()
	log.Printf("serving modbus on %v\n", server.Addr())

	fmt.Println("Press ctrl+c to stop")
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	fmt.Println("Stopped")
}

// datastore allocates one store per declared unit, each large enough
// for the widest sub-layout of that unit.
func datastore(layout *modbus.ServerContextLayout, size int) *modbus.ServerDatastore {
	units := make(map[int]*modbus.Datastore)
	for _, unit := range layout.Units() {
		n := size
		slave, _ := layout.Slave(unit)
		if l := slave.HoldingRegisters; l != nil && l.End() > n {
			n = l.End()
		}
		if l := slave.InputRegisters; l != nil && l.End() > n {
			n = l.End()
		}
		if l := slave.Coils; l != nil && l.End() > n {
			n = l.End()
		}
		if l := slave.DiscreteInputs; l != nil && l.End() > n {
			n = l.End()
		}
		units[unit] = modbus.NewDatastore(n)
	}
	return modbus.NewServerDatastore(units)
}
