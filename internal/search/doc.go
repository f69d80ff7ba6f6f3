// Package search runs the bi-level architecture search.
//
// Two parameter pools are optimized alternately on disjoint data:
//
//   - ordinary weights w: SGD with momentum on the training split
//   - architecture weights α (alpha_normal, alpha_reduce): Adam on the
//     validation split, through the Architect
//
// The Architect supports the first-order approximation (∇α L_val(w, α))
// and the unrolled second-order gradient
//
//	∇α L_val(w', α) - η ∇²α,w L_train(w, α) ∇w' L_val(w', α)
//
// where w' = w - η ∇w L_train(w, α) is one virtual SGD step, and the
// Hessian-vector product is approximated by central finite differences.
package search
