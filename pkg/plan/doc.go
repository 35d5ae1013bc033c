/*
Package plan holds the plan tree and the planner that flattens it.

A plan is a set of named groups registered in a Registry. Each group is a tree of
Steps composed with Sequence (ordered) and Parallel (unordered), and a Step may
require other groups by Ref. Build expands a root group into a DAG:

  - a group reached from several places is expanded once;
  - an edge into a group attaches to its first members, an edge out of it leaves
    from its last members;
  - the order is Kahn's algorithm with ties broken by creation order.
*/
package plan
