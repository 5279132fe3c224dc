// Package catalog holds the built-in sample programs seeded into the example
// store at startup.
package catalog

import "github.com/SachiinVishwakarma/CodeBasse/internal/domain"

// Examples returns the built-in catalog in display order.
func Examples() []domain.Example {
	out := make([]domain.Example, len(builtin))
	copy(out, builtin)
	for i := range out {
		out[i].Position = i
	}
	return out
}

var builtin = []domain.Example{
	{
		ID:          "hello-world",
		Title:       "Hello World",
		Description: "Your first C program - prints a greeting message",
		Difficulty:  domain.DifficultyBeginner,
		Category:    "Basics",
		Code: `#include <stdio.h>

int main() {
    printf("Hello, World!\n");
    printf("Welcome to C programming!\n");
    return 0;
}`,
	},
	{
		ID:          "variables",
		Title:       "Variables & Data Types",
		Description: "Learn about different data types in C",
		Difficulty:  domain.DifficultyBeginner,
		Category:    "Basics",
		Code: `#include <stdio.h>

int main() {
    // Integer variables
    int age = 25;
    int year = 2024;

    // Float variables
    float height = 5.9;
    double pi = 3.14159;

    // Character variables
    char grade = 'A';
    char name[] = "CodeBase";

    // Print all variables
    printf("Name: %s\n", name);
    printf("Age: %d years\n", age);
    printf("Height: %.1f feet\n", height);
    printf("Grade: %c\n", grade);
    printf("Year: %d\n", year);
    printf("Pi value: %.5f\n", pi);

    return 0;
}`,
	},
	{
		ID:          "calculator",
		Title:       "Simple Calculator",
		Description: "Basic arithmetic operations with user input",
		Difficulty:  domain.DifficultyBeginner,
		Category:    "Math",
		Code: `#include <stdio.h>

int main() {
    float num1, num2;
    char operator;
    float result;

    printf("=== Simple Calculator ===\n");
    printf("Enter first number: ");
    scanf("%f", &num1);

    printf("Enter operator (+, -, *, /): ");
    scanf(" %c", &operator);

    printf("Enter second number: ");
    scanf("%f", &num2);

    switch(operator) {
        case '+':
            result = num1 + num2;
            printf("%.2f + %.2f = %.2f\n", num1, num2, result);
            break;
        case '-':
            result = num1 - num2;
            printf("%.2f - %.2f = %.2f\n", num1, num2, result);
            break;
        case '*':
            result = num1 * num2;
            printf("%.2f * %.2f = %.2f\n", num1, num2, result);
            break;
        case '/':
            if(num2 != 0) {
                result = num1 / num2;
                printf("%.2f / %.2f = %.2f\n", num1, num2, result);
            } else {
                printf("Error: Division by zero!\n");
            }
            break;
        default:
            printf("Error: Invalid operator!\n");
    }

    return 0;
}`,
	},
	{
		ID:          "loops",
		Title:       "Loops & Patterns",
		Description: "For loops, while loops, and pattern printing",
		Difficulty:  domain.DifficultyBeginner,
		Category:    "Control Flow",
		Code: `#include <stdio.h>

int main() {
    int i, j, n = 5;

    printf("=== Loop Examples ===\n\n");

    // For loop example
    printf("1. Counting from 1 to 10:\n");
    for(i = 1; i <= 10; i++) {
        printf("%d ", i);
    }
    printf("\n\n");

    // While loop example
    printf("2. Even numbers from 2 to 20:\n");
    i = 2;
    while(i <= 20) {
        printf("%d ", i);
        i += 2;
    }
    printf("\n\n");

    // Pattern printing
    printf("3. Star pattern:\n");
    for(i = 1; i <= n; i++) {
        for(j = 1; j <= i; j++) {
            printf("* ");
        }
        printf("\n");
    }

    printf("\n4. Number triangle:\n");
    for(i = 1; i <= n; i++) {
        for(j = 1; j <= i; j++) {
            printf("%d ", j);
        }
        printf("\n");
    }

    return 0;
}`,
	},
	{
		ID:          "arrays",
		Title:       "Arrays & Functions",
		Description: "Working with arrays and creating functions",
		Difficulty:  domain.DifficultyIntermediate,
		Category:    "Data Structures",
		Code: `#include <stdio.h>

// Function to find maximum element
int findMax(int arr[], int size) {
    int max = arr[0];
    for(int i = 1; i < size; i++) {
        if(arr[i] > max) {
            max = arr[i];
        }
    }
    return max;
}

// Function to calculate average
float calculateAverage(int arr[], int size) {
    int sum = 0;
    for(int i = 0; i < size; i++) {
        sum += arr[i];
    }
    return (float)sum / size;
}

// Function to print array
void printArray(int arr[], int size) {
    printf("Array elements: ");
    for(int i = 0; i < size; i++) {
        printf("%d ", arr[i]);
    }
    printf("\n");
}

int main() {
    int numbers[] = {45, 23, 78, 12, 67, 34, 89, 56};
    int size = sizeof(numbers) / sizeof(numbers[0]);

    printf("=== Array Operations ===\n\n");

    printArray(numbers, size);

    int max = findMax(numbers, size);
    printf("Maximum element: %d\n", max);

    float avg = calculateAverage(numbers, size);
    printf("Average: %.2f\n", avg);

    // Sorting (bubble sort)
    printf("\nSorting array...\n");
    for(int i = 0; i < size-1; i++) {
        for(int j = 0; j < size-i-1; j++) {
            if(numbers[j] > numbers[j+1]) {
                int temp = numbers[j];
                numbers[j] = numbers[j+1];
                numbers[j+1] = temp;
            }
        }
    }

    printf("Sorted ");
    printArray(numbers, size);

    return 0;
}`,
	},
	{
		ID:          "fibonacci",
		Title:       "Fibonacci Series",
		Description: "Generate Fibonacci sequence using recursion",
		Difficulty:  domain.DifficultyIntermediate,
		Category:    "Algorithms",
		Code: `#include <stdio.h>

// Recursive function to calculate Fibonacci
int fibonacci(int n) {
    if(n <= 1) {
        return n;
    }
    return fibonacci(n-1) + fibonacci(n-2);
}

// Iterative function for better performance
void fibonacciSeries(int n) {
    int first = 0, second = 1, next;

    printf("Fibonacci Series (first %d terms):\n", n);

    if(n >= 1) printf("%d ", first);
    if(n >= 2) printf("%d ", second);

    for(int i = 3; i <= n; i++) {
        next = first + second;
        printf("%d ", next);
        first = second;
        second = next;
    }
    printf("\n\n");
}

int main() {
    int n = 10;

    printf("=== Fibonacci Examples ===\n\n");

    // Using iterative approach
    fibonacciSeries(n);

    // Using recursive approach for individual terms
    printf("Using recursion:\n");
    printf("5th Fibonacci number: %d\n", fibonacci(5));
    printf("8th Fibonacci number: %d\n", fibonacci(8));
    printf("10th Fibonacci number: %d\n", fibonacci(10));

    // Check if a number is in Fibonacci series
    int num = 21;
    int found = 0;
    for(int i = 0; i <= 20; i++) {
        if(fibonacci(i) == num) {
            found = 1;
            printf("\n%d is the %dth Fibonacci number\n", num, i);
            break;
        }
    }

    if(!found) {
        printf("\n%d is not a Fibonacci number\n", num);
    }

    return 0;
}`,
	},
}
