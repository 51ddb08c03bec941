// Command strikes trains and evaluates the boxing strike classifier.
package main

func main() {
	Execute()
}
