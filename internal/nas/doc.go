// Package nas implements the differentiable architecture search space.
//
// The search space is a continuous relaxation over a closed catalogue of
// candidate operations:
//
//   - Library: name → factory map for the candidate operations
//   - MixedEdge: one instance of every catalogue operation, combined by a
//     weighted sum
//   - Cell: a DAG template of mixed edges stored as a flat edge arena
//   - Network: stem, stacked normal/reduction cells, classifier head, and
//     the two architecture-weight pools alpha_normal and alpha_reduce
//   - Genotype: the discrete architecture derived from the weights
//
// Every normal cell consumes softmax(alpha_normal) and every reduction cell
// consumes softmax(alpha_reduce); the same two parameters are shared by all
// cells of a kind.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	cfg := nas.DefaultConfig()
//	net, err := nas.NewNetwork(cfg, nil, backend)
//	if err != nil {
//		return err
//	}
//	logits := net.Forward(images) // [batch, NumClasses]
//	fmt.Println(net.Genotype())
package nas
