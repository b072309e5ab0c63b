// Package viz is the terminal front end of the simulated joint.
//
// [Model] is a Bubble Tea program that steps a plant.Simulation once per
// control period and renders:
//
//   - the joint and both muscles on a braille [Canvas]
//   - angle and target history as an ASCII chart
//   - pressures, setpoints, valve duties and sensor faults
//
// # Key Bindings
//
//	Up/K, Down/J - Move the target angle
//	Z            - Re-zero at the current position
//	D            - Cycle injected sensor dropout (0%, 5%, 100%)
//	Space        - Pause/Resume
//	?            - Show help overlay
//	Q            - Quit
package viz
