package engine

import "fmt"

// refinedLabel is the heading the refinement prompt ends with. Backends
// often echo it back in front of their answer.
const refinedLabel = "Refined Problem Statement for OR Modeling:"

const refineSystem = "You are an expert Operations Research modeler. You rewrite problem " +
	"statements so they can be turned into a mathematical model automatically. " +
	"You never solve the problem and never write the model yourself."

const refineTemplate = `Rewrite the problem statement below so it is precise and unambiguous.
Make the objective, the constraints, the known values and the decisions explicit.
If information a typical model of this kind needs is missing, say so briefly, but keep to what is given.
Answer with the rewritten statement only.

---BEGIN ORIGINAL STATEMENT---
%s
---END ORIGINAL STATEMENT---

` + refinedLabel

const formulateSystem = "You are an Operations Research expert. You convert problem statements " +
	"into structured optimization models whose text is ready for LaTeX rendering. " +
	"You answer with a single JSON object and nothing else."

const formulateTemplate = `Convert the problem statement into a JSON object with these keys:

- "sets": list of strings, e.g. "Warehouses ($W$)"
- "parameters": object mapping a LaTeX symbol to its description with units, e.g. "$c_{wr}$": "Cost to ship one unit from $w$ to $r$ (\\$)"
- "variables": object mapping a LaTeX symbol to its description including domain and bounds
- "objective": {"type": "Minimize" or "Maximize", "expression": "$...$"}
- "constraints": list of strings, each a formula followed by its name in parentheses, e.g. "$\\sum_{r \\in R} x_{wr} \\leq s_w$ for all $w \\in W$ (Supply)"
- "data": object with the concrete values, if the statement gives any; values may be numbers, lists or objects

Formatting rules:
- Put every mathematical expression in $...$ and use LaTeX commands (\\sum, \\forall, \\leq, \\geq, \\in, \\frac).
- Use braces for multi-character subscripts: x_{ij}.
- The answer must be valid JSON: escape every backslash as \\ and never put raw line breaks inside strings.
- Write a literal dollar amount as \\$.

---BEGIN PROBLEM STATEMENT---
%s
---END PROBLEM STATEMENT---`

const codeSystem = "You are an Operations Research professional and Python programmer. " +
	"You answer with complete, directly executable Python code and nothing else."

const codeTemplate = `Write PuLP Python code that builds and solves this optimization model:

%s

Requirements:
1. Import pulp. Use numpy only if the data structures really need it.
2. Declare every decision variable with pulp.LpVariable or pulp.LpVariable.dicts, named as in the model, with bounds and categories (LpContinuous, LpInteger, LpBinary).
3. Create the problem with pulp.LpProblem and the right sense (LpMinimize or LpMaximize).
4. Add the objective and every constraint, giving each constraint the name used in the model.
5. Solve with status = model.solve().
6. Print the status as "Status: <pulp.LpStatus[status]>", the objective as "Objective Value: <value>", and the value of every decision variable for every index. Print "Not in solution" when varValue is None.
7. Every conditional expression must have an else branch.

Return only the Python code, without markdown fences or explanations.`

func refinePrompt(statement string) string {
	return fmt.Sprintf(refineTemplate, statement)
}

func formulatePrompt(statement string) string {
	return fmt.Sprintf(formulateTemplate, statement)
}

func codePrompt(outline string) string {
	return fmt.Sprintf(codeTemplate, outline)
}
