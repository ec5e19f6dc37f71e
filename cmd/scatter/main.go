// Command scatter evaluates and tunes heuristic parameters by sampling trials
// on a remote worker fleet or a local process pool.
package main

func main() {
	Execute()
}
